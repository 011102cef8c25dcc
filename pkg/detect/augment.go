package detect

import (
	"context"
	"fmt"
	"time"

	"github.com/verdantmrv/canopy/pkg/mask"
	"github.com/verdantmrv/canopy/pkg/raster"
)

// DefaultAugmenterWeight is the ensemble weight for an injected external
// classifier. Higher than any single color-space test, since a trained
// segmentation model typically outperforms them.
const DefaultAugmenterWeight = 0.35

// DefaultAugmenterTimeout bounds a single external classifier call.
const DefaultAugmenterTimeout = 30 * time.Second

// Augmenter wraps an external classifier so that it behaves like one more
// ensemble detector: bounded by a timeout, and failing soft. The external
// call may run out of process or over the network; the traditional pipeline
// must never block on it.
type Augmenter struct {
	inner   MaskDetector
	timeout time.Duration
}

// NewAugmenter wraps an external MaskDetector. A timeout of zero uses
// DefaultAugmenterTimeout.
func NewAugmenter(inner MaskDetector, timeout time.Duration) *Augmenter {
	if timeout <= 0 {
		timeout = DefaultAugmenterTimeout
	}
	return &Augmenter{inner: inner, timeout: timeout}
}

func (a *Augmenter) Name() string {
	return "augment:" + a.inner.Name()
}

type augmentOutput struct {
	m    *mask.Mask
	conf *mask.ConfidenceMap
	err  error
}

// Detect invokes the wrapped classifier with a deadline. Timeout or error is
// returned to the ensemble, which treats it as "capability absent".
func (a *Augmenter) Detect(ctx context.Context, img *raster.Image) (*mask.Mask, *mask.ConfidenceMap, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out := make(chan augmentOutput, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- augmentOutput{err: fmt.Errorf("external classifier %v panicked: %v", a.inner.Name(), r)}
			}
		}()
		m, conf, err := a.inner.Detect(ctx, img)
		out <- augmentOutput{m: m, conf: conf, err: err}
	}()

	select {
	case r := <-out:
		return r.m, r.conf, r.err
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("external classifier %v: %w", a.inner.Name(), ctx.Err())
	}
}
