package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FirstText tries generators in order and returns the first non-empty answer.
func FirstText(ctx context.Context, log *zap.Logger, req TextRequest, gens ...TextGenerator) (TextResult, string, error) {
	var errs []error
	for _, g := range gens {
		if g == nil {
			continue
		}
		res, err := g.GenerateText(ctx, req)
		if err == nil && strings.TrimSpace(res.Text) == "" {
			err = fmt.Errorf("%s: empty text", g.Name())
		}
		if err == nil {
			return res, g.Name(), nil
		}
		if ctx.Err() != nil {
			return TextResult{}, "", ctx.Err()
		}
		log.Warn("text provider failed, trying next", zap.String("provider", g.Name()), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return TextResult{}, "", errors.New("no text provider configured")
	}
	return TextResult{}, "", lastOrJoin(errs)
}

// FirstImage tries generators in order and returns the first image.
func FirstImage(ctx context.Context, log *zap.Logger, req ImageRequest, gens ...ImageGenerator) (ImageResult, string, error) {
	var errs []error
	for _, g := range gens {
		if g == nil {
			continue
		}
		res, err := g.GenerateImage(ctx, req)
		if err == nil && res.URL == "" && len(res.Data) == 0 {
			err = fmt.Errorf("%s: empty image", g.Name())
		}
		if err == nil {
			return res, g.Name(), nil
		}
		if ctx.Err() != nil {
			return ImageResult{}, "", ctx.Err()
		}
		log.Warn("image provider failed, trying next", zap.String("provider", g.Name()), zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ImageResult{}, "", errors.New("no image provider configured")
	}
	return ImageResult{}, "", lastOrJoin(errs)
}

// lastOrJoin keeps a single failure unwrapped so callers can translate it.
func lastOrJoin(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
