package player

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Multi fans a playback out to several players.
// Every player is tried; the errors are combined.
type Multi []Player

func (m Multi) Play(ctx context.Context, req Request) error {
	var result *multierror.Error
	for _, p := range m {
		if err := p.Play(ctx, req); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (m Multi) Stop(ctx context.Context) error {
	var result *multierror.Error
	for _, p := range m {
		if err := p.Stop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
