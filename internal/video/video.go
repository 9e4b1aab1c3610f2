// Package video replays recorded footage through the live loop and stores the
// annotated frames.
package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/andresmejia3/memento/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// maxFrameSize bounds a single MJPEG frame held by the scanner.
const maxFrameSize = 32 * 1024 * 1024

// MJPEGSource decodes a stream of concatenated JPEG images.
type MJPEGSource struct {
	r       io.Reader
	scanner *bufio.Scanner
}

// NewMJPEGSource reads frames from r.
func NewMJPEGSource(r io.Reader) *MJPEGSource {
	return &MJPEGSource{r: r}
}

func (s *MJPEGSource) Open(ctx context.Context) error {
	s.scanner = bufio.NewScanner(s.r)
	s.scanner.Buffer(make([]byte, 0, 1024*1024), maxFrameSize)
	s.scanner.Split(utils.SplitJpeg)
	return nil
}

// Read returns the next frame, or io.EOF at the end of the stream.
func (s *MJPEGSource) Read(ctx context.Context) (*image.RGBA, error) {
	if s.scanner == nil {
		return nil, fmt.Errorf("source is not open")
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		return nil, io.EOF
	}
	img, err := jpeg.Decode(bytes.NewReader(s.scanner.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return utils.ToRGBA(img), nil
}

func (s *MJPEGSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// FileSource decodes a video file with ffmpeg.
type FileSource struct {
	Path string

	cmd    *utils.SafeCommand
	stream *MJPEGSource
	done   bool
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Open(ctx context.Context) error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	cmd := utils.NewFFmpegCmd(ctx, f.Path)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create decoder pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start decoder: %w", err)
	}
	f.cmd = cmd
	f.stream = NewMJPEGSource(out)
	return f.stream.Open(ctx)
}

func (f *FileSource) Read(ctx context.Context) (*image.RGBA, error) {
	if f.stream == nil {
		return nil, fmt.Errorf("video %s is not open", f.Path)
	}
	img, err := f.stream.Read(ctx)
	if err == io.EOF && !f.done {
		// A decoder that exits non-zero is a failure, not the end of the video
		f.done = true
		if werr := f.cmd.Wait(); werr != nil {
			return nil, fmt.Errorf("decoder failed: %w", werr)
		}
	}
	return img, err
}

// Command returns the running decoder, for error reports with its stderr.
func (f *FileSource) Command() *utils.SafeCommand {
	return f.cmd
}

func (f *FileSource) Close() error {
	if f.cmd == nil || f.done {
		return nil
	}
	f.done = true
	if f.cmd.Process != nil {
		f.cmd.Process.Kill()
	}
	f.cmd.Wait() // exit status after Kill is expected
	return nil
}

// DirSink writes shown frames as numbered JPEG files. It never reports keys.
type DirSink struct {
	Dir     string
	Quality int
	Bar     *progressbar.ProgressBar

	n int
}

func NewDirSink(dir string, bar *progressbar.ProgressBar) (*DirSink, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	return &DirSink{Dir: dir, Quality: 90, Bar: bar}, nil
}

// Show writes frame_NNNNNN.jpg. Without a directory frames are only counted.
func (s *DirSink) Show(frame *image.RGBA) error {
	if s.Dir != "" {
		path := filepath.Join(s.Dir, fmt.Sprintf("frame_%06d.jpg", s.n))
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := jpeg.Encode(file, frame, &jpeg.Options{Quality: s.Quality}); err != nil {
			file.Close()
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	s.n++
	if s.Bar != nil {
		s.Bar.Add(1)
	}
	return nil
}

func (s *DirSink) PollKey() (rune, bool) { return 0, false }

// Frames returns the number of frames shown.
func (s *DirSink) Frames() int { return s.n }

func (s *DirSink) Close() error {
	if s.Bar != nil {
		return s.Bar.Finish()
	}
	return nil
}
