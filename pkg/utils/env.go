package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors turns validator failures into one readable error naming
// the offending env vars, and logs each one.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	var missing []string
	for _, fe := range verrs {
		envName := fe.Field()
		if field, found := t.FieldByName(fe.Field()); found {
			if tag := field.Tag.Get("mapstructure"); tag != "" {
				envName = tag
			}
		}
		logger.Error("invalid configuration value",
			zap.String("env", envName), zap.String("rule", fe.Tag()))
		missing = append(missing, envName)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(missing, ", "))
}
