package event

import (
	"errors"
	"unicode/utf8"
)

// permanentError помечает ошибку как неисправимую повторной доставкой.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает err как постоянную ошибку обработки сообщения.
// Очередь отправит такое сообщение в DLQ, push-подписка получит 2xx.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	if IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка (или обёрнутая в ней) как постоянная.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func isUTF8(b []byte) bool {
	return utf8.Valid(b)
}
