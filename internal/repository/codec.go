package repository

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Decode раскладывает поля документа в структуру модели.
func Decode(doc Document, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("создание декодера: %w", err)
	}
	if err := decoder.Decode(map[string]any(doc.Fields)); err != nil {
		return fmt.Errorf("декодирование %s: %w", doc.Path, err)
	}
	return nil
}

// Encode превращает модель в поля документа. Поля с тегом "-" пропускаются.
func Encode(in any) (Fields, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(in, &out); err != nil {
		return nil, fmt.Errorf("кодирование: %w", err)
	}
	return Fields(out), nil
}
