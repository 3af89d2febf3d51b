package mocks

import (
	"context"

	"github.com/bnema/mediafetch/internal/port"
	"github.com/stretchr/testify/mock"
)

type TranslatorMock struct {
	mock.Mock
}

func NewTranslatorMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *TranslatorMock {
	m := &TranslatorMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TranslatorMock) Translate(ctx context.Context, text, source, target string) (string, error) {
	args := m.Called(ctx, text, source, target)
	if fn, ok := args.Get(0).(func(string) (string, error)); ok {
		return fn(text)
	}
	return args.String(0), args.Error(1)
}

var _ port.Translator = (*TranslatorMock)(nil)
