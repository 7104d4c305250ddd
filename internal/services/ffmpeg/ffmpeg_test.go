package ffmpeg_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"chorus/internal/config"
	"chorus/internal/services"
	"chorus/internal/services/ffmpeg"
)

func TestWriteTagsCopyCodec(t *testing.T) {
	client := ffmpeg.NewClient(config.Tagging{})
	var gotArgs []string
	client.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "ffmpeg" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return nil, nil
	})

	err := client.WriteTags(context.Background(), ffmpeg.TagRequest{
		Source: "/staging/a.opus",
		Dest:   "/staging/a.tagged.opus",
		Title:  "Song",
		Artist: "Artist",
		Album:  "Album",
		Track:  3,
	})
	if err != nil {
		t.Fatalf("WriteTags returned error: %v", err)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{
		"-i /staging/a.opus",
		"-c:a copy",
		"-metadata title=Song",
		"-metadata artist=Artist",
		"-metadata album=Album",
		"-metadata track=3",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %v", want, gotArgs)
		}
	}
	if strings.Contains(joined, "libmp3lame") {
		t.Fatalf("unexpected conversion in args %v", gotArgs)
	}
	if gotArgs[len(gotArgs)-1] != "/staging/a.tagged.opus" {
		t.Fatalf("expected dest last, got %v", gotArgs)
	}
}

func TestWriteTagsMP3ConversionWithCover(t *testing.T) {
	client := ffmpeg.NewClient(config.Tagging{})
	var gotArgs []string
	client.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	})

	err := client.WriteTags(context.Background(), ffmpeg.TagRequest{
		Source:    "/staging/a.opus",
		Dest:      "/staging/a.mp3",
		Title:     "Song",
		Artist:    "Artist",
		Album:     "Album",
		CoverPath: "/lib/pl/cover.jpg",
	})
	if err != nil {
		t.Fatalf("WriteTags returned error: %v", err)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{
		"-i /lib/pl/cover.jpg",
		"-c:a libmp3lame",
		"-q:a 2",
		"-id3v2_version 3",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %v", want, gotArgs)
		}
	}
}

func TestWriteTagsNoCoverForNonMP3(t *testing.T) {
	client := ffmpeg.NewClient(config.Tagging{})
	var gotArgs []string
	client.WithCommandRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	})

	err := client.WriteTags(context.Background(), ffmpeg.TagRequest{
		Source:    "/staging/a.opus",
		Dest:      "/staging/a.tagged.opus",
		CoverPath: "/lib/pl/cover.jpg",
	})
	if err != nil {
		t.Fatalf("WriteTags returned error: %v", err)
	}
	if strings.Contains(strings.Join(gotArgs, " "), "cover.jpg") {
		t.Fatalf("cover must not be embedded for non-mp3 dest: %v", gotArgs)
	}
}

func TestWriteTagsValidation(t *testing.T) {
	client := ffmpeg.NewClient(config.Tagging{})

	err := client.WriteTags(context.Background(), ffmpeg.TagRequest{Source: "", Dest: "/x.mp3"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = client.WriteTags(context.Background(), ffmpeg.TagRequest{Source: "/x.mp3", Dest: "/x.mp3"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for same source and dest, got %v", err)
	}
}

func TestWriteTagsToolFailure(t *testing.T) {
	client := ffmpeg.NewClient(config.Tagging{})
	client.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Invalid data found when processing input"), fmt.Errorf("exit status 1")
	})

	err := client.WriteTags(context.Background(), ffmpeg.TagRequest{Source: "/a.opus", Dest: "/a.mp3"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
