package mocks

import (
	"context"

	"github.com/bnema/mediafetch/internal/domain"
	"github.com/bnema/mediafetch/internal/port"
	"github.com/stretchr/testify/mock"
)

type ExtractorMock struct {
	mock.Mock
}

func NewExtractorMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *ExtractorMock {
	m := &ExtractorMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ExtractorMock) Download(ctx context.Context, req port.DownloadRequest) (port.DownloadResult, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(port.DownloadRequest) (port.DownloadResult, error)); ok {
		return fn(req)
	}
	return args.Get(0).(port.DownloadResult), args.Error(1)
}

func (m *ExtractorMock) DownloadSubtitles(ctx context.Context, req port.SubtitleRequest) error {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(port.SubtitleRequest) error); ok {
		return fn(req)
	}
	return args.Error(0)
}

func (m *ExtractorMock) Info(ctx context.Context, url, cookiePath string) (domain.MediaInfo, error) {
	args := m.Called(ctx, url, cookiePath)
	return args.Get(0).(domain.MediaInfo), args.Error(1)
}

var _ port.Extractor = (*ExtractorMock)(nil)
