package audio_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/meetscribe/pkg/domain/model"
	"github.com/secmon-lab/meetscribe/pkg/service/audio"
)

func TestValidator(t *testing.T) {
	v := audio.NewValidator()

	t.Run("accepts supported formats", func(t *testing.T) {
		for _, name := range []string{"a.wav", "b.MP3", "c.m4a", "d.ogg", "e.flac", "f.webm"} {
			format, err := v.Validate(name, "", 1024)
			gt.NoError(t, err).Required()
			gt.Value(t, format).Equal(strings.ToLower(strings.TrimPrefix(name[strings.LastIndex(name, "."):], ".")))
		}
	})

	t.Run("rejects unsupported format", func(t *testing.T) {
		_, err := v.Validate("notes.txt", "text/plain", 1024)
		gt.Bool(t, errors.Is(err, model.ErrFileValidation)).True()
		gt.Value(t, model.ErrorCode(err)).Equal("FILE_VALIDATION_ERROR")
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		_, err := v.Validate("big.mp3", "audio/mpeg", audio.DefaultMaxUploadSize+1)
		gt.Bool(t, errors.Is(err, model.ErrFileValidation)).True()
	})

	t.Run("accepts mismatched content type", func(t *testing.T) {
		format, err := v.Validate("a.mp3", "audio/wav", 10)
		gt.NoError(t, err)
		gt.Value(t, format).Equal("mp3")
	})

	t.Run("custom limits", func(t *testing.T) {
		v := audio.NewValidator(audio.WithFormats("wav"), audio.WithMaxSize(10))
		_, err := v.Validate("a.mp3", "", 5)
		gt.Error(t, err)
		_, err = v.Validate("a.wav", "", 11)
		gt.Error(t, err)
	})
}

func TestNewKey(t *testing.T) {
	k1 := audio.NewKey("user-1", "mp3")
	k2 := audio.NewKey("user-1", "mp3")
	gt.Bool(t, strings.HasPrefix(k1, "user-1/")).True()
	gt.Bool(t, strings.HasSuffix(k1, ".mp3")).True()
	gt.Value(t, k1).NotEqual(k2)
}

func TestProcessor_Duration(t *testing.T) {
	p := audio.NewProcessor(audio.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gt.Value(t, name).Equal("ffprobe")
		return []byte("1234.5\n"), nil
	}))

	d, err := p.Duration(context.Background(), "/tmp/a.mp3")
	gt.NoError(t, err).Required()
	gt.Number(t, d).Equal(1234.5)
}

func TestProcessor_DurationFailure(t *testing.T) {
	p := audio.NewProcessor(audio.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("garbage"), nil
	}))

	_, err := p.Duration(context.Background(), "/tmp/a.mp3")
	gt.Bool(t, errors.Is(err, model.ErrExternalCapability)).True()
	gt.Value(t, model.ErrorCode(err)).Equal("AUDIO_PROCESSING_ERROR")
}

func TestProcessor_Split(t *testing.T) {
	var cuts int
	p := audio.NewProcessor(audio.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "ffprobe" {
			return []byte("1500"), nil
		}
		cuts++
		out := args[len(args)-1]
		return nil, os.WriteFile(out, []byte("wav"), 0o600)
	}))

	windows, cleanup, err := p.Split(context.Background(), "/tmp/a.mp3", 600)
	gt.NoError(t, err).Required()

	gt.Array(t, windows).Length(3).Required()
	gt.Number(t, cuts).Equal(3)
	gt.Number(t, windows[0].Start).Equal(0.0)
	gt.Number(t, windows[1].Start).Equal(600.0)
	gt.Number(t, windows[2].Start).Equal(1200.0)
	gt.Number(t, windows[2].Duration).Equal(300.0)

	_, err = os.Stat(windows[0].Path)
	gt.NoError(t, err)

	cleanup()
	_, err = os.Stat(windows[0].Path)
	gt.Bool(t, errors.Is(err, os.ErrNotExist)).True()
}
