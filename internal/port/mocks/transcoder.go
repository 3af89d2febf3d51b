package mocks

import (
	"context"

	"github.com/bnema/mediafetch/internal/port"
	"github.com/stretchr/testify/mock"
)

type TranscoderMock struct {
	mock.Mock
}

func NewTranscoderMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *TranscoderMock {
	m := &TranscoderMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TranscoderMock) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := m.Called(ctx, inputPath, outputPath)
	if fn, ok := args.Get(0).(func(string, string) error); ok {
		return fn(inputPath, outputPath)
	}
	return args.Error(0)
}

func (m *TranscoderMock) ConvertSubtitle(ctx context.Context, inputPath, outputPath string) error {
	args := m.Called(ctx, inputPath, outputPath)
	if fn, ok := args.Get(0).(func(string, string) error); ok {
		return fn(inputPath, outputPath)
	}
	return args.Error(0)
}

func (m *TranscoderMock) BurnSubtitles(ctx context.Context, req port.BurnRequest) error {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(port.BurnRequest) error); ok {
		return fn(req)
	}
	return args.Error(0)
}

func (m *TranscoderMock) Duration(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

var _ port.Transcoder = (*TranscoderMock)(nil)
