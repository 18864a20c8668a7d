package archive

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pixelcast-dev/pixelcast/pkg/frame"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (p *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if p.err != nil {
		return nil, p.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	p.inputs = append(p.inputs, in)
	p.bodies = append(p.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestStoreSavesPNG(t *testing.T) {
	putter := &fakePutter{}
	store := NewStore(putter, "screens", "snapshots")
	store.now = func() time.Time {
		return time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	}

	f := frame.New(4, 3)
	f.SetRGB(1, 1, 255, 0, 0)

	key, err := store.Save(context.Background(), "lobby", f)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := "snapshots/lobby/20260823T103000.png"; key != want {
		t.Errorf("key = %q, want %q", key, want)
	}
	if len(putter.inputs) != 1 {
		t.Fatalf("PutObject called %d times, want 1", len(putter.inputs))
	}
	in := putter.inputs[0]
	if *in.Bucket != "screens" || *in.Key != key {
		t.Errorf("uploaded to %s/%s, want screens/%s", *in.Bucket, *in.Key, key)
	}
	if *in.ContentType != "image/png" {
		t.Errorf("content type = %q", *in.ContentType)
	}

	img, err := png.Decode(bytes.NewReader(putter.bodies[0]))
	if err != nil {
		t.Fatalf("uploaded body is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("PNG is %v, want 4x3", img.Bounds())
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("pixel (1,1) = (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
}

func TestStoreSaveErrors(t *testing.T) {
	store := NewStore(&fakePutter{err: errors.New("denied")}, "screens", "")
	if _, err := store.Save(context.Background(), "lobby", frame.New(1, 1)); err == nil {
		t.Error("upload failure not surfaced")
	}
	if _, err := store.Save(context.Background(), "lobby", nil); err == nil {
		t.Error("nil frame accepted")
	}
}
