package port

import "context"

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}
