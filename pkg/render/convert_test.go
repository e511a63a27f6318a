package render

import (
	"context"
	"testing"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

func TestConvertWithoutConverter(t *testing.T) {
	if Available() {
		t.Skip("rsvg-convert is installed")
	}
	if _, err := ToPDF(context.Background(), []byte("<svg/>")); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("ToPDF error = %v, want UNSUPPORTED", err)
	}
	if _, err := ToPNG(context.Background(), []byte("<svg/>"), 0); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("ToPNG error = %v, want UNSUPPORTED", err)
	}
}

func TestConvertCancelled(t *testing.T) {
	if !Available() {
		t.Skip("rsvg-convert is not installed")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ToPDF(ctx, []byte("<svg/>")); err == nil {
		t.Error("ToPDF with a cancelled context should fail")
	}
}
