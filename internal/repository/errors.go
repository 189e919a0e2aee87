package repository

import "errors"

var (
	ErrNotFound    = errors.New("документ не найден")
	ErrInvalidPath = errors.New("неверный путь документа")
)
