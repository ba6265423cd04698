package services

import (
	"bytes"
	"encoding/json"
)

// OptionalString различает отсутствующий ключ и явный null/пустую строку.
// Set=false: поле не трогаем. Set=true и Value=="" : очищаем колонку.
type OptionalString struct {
	Set   bool
	Value string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Some возвращает заданное значение (удобно в тестах).
func Some(v string) OptionalString {
	return OptionalString{Set: true, Value: v}
}

// ProfileUpdate - частичное обновление профиля.
type ProfileUpdate struct {
	Username OptionalString `json:"username"`
	Email    OptionalString `json:"email"`
	Phone    OptionalString `json:"phone"`
	Bio      OptionalString `json:"bio"`
}

func (p ProfileUpdate) Empty() bool {
	return !p.Username.Set && !p.Email.Set && !p.Phone.Set && !p.Bio.Set
}
