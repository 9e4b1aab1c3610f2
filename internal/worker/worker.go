// Package worker runs the face detector as a Python subprocess and speaks a
// length-prefixed binary protocol with it.
//
// Requests go over stdin as [uint32 len][jpeg]. Replies come back over a
// dedicated pipe (FD 3 in the child) as [uint32 len][payload], where payload is
//
//	[status=0][uint32 n] n * ([4]int32 x1,y1,x2,y2 [uint32 dim] dim*float32)
//	[status=1][uint32 msgLen][msg]
//
// All integers are big endian.
package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"sync"

	"github.com/andresmejia3/memento/internal/types"
	"github.com/andresmejia3/memento/internal/utils"
	"golang.org/x/image/draw"
)

// DefaultCommand starts the bundled insightface worker.
const DefaultCommand = "python3 -u python/face_worker.py"

// maxFaces bounds the face count of a single reply.
const maxFaces = 1024

// maxDim bounds the embedding length of a single face.
const maxDim = 4096

// maxReply bounds a reply payload: status, count and maxFaces full-size faces.
const maxReply = 5 + maxFaces*(16+4+4*maxDim)

// Config controls how frames are handed to the worker.
type Config struct {
	Command     string // e.g. "python3 -u python/face_worker.py"
	MaxWidth    int    // frames wider than this are downscaled before detection, 0 disables
	JPEGQuality int
}

type PythonWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	cfg Config
	mu  sync.Mutex
}

func NewPythonWorker(ctx context.Context, id int, cfg Config) (*PythonWorker, error) {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	name, args, err := utils.SplitCommandLine(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid worker command: %w", err)
	}
	py := utils.NewSafeCommand(ctx, name, args...)

	// Side-channel pipe (FD 3) keeps replies apart from Python's stdout prints
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Only the child holds the write end now
	w.Close()

	return &PythonWorker{
		ID:       id,
		Cmd:      py,
		Stdin:    stdin,
		DataPipe: r,
		cfg:      cfg,
	}, nil
}

// Communicate sends one request and returns the raw reply payload.
func (w *PythonWorker) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // worker died, stderr holds the traceback
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxReply {
		return nil, fmt.Errorf("implausible reply size %d", respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends an encoded image and decodes the detected faces.
func (w *PythonWorker) ProcessFrame(data []byte) ([]types.DetectedFace, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	resp, err := w.Communicate(data)
	if err != nil {
		return nil, err
	}
	return decodeReply(resp)
}

// Detect encodes frame, runs detection and maps boxes back to frame coordinates.
func (w *PythonWorker) Detect(ctx context.Context, frame *image.RGBA) ([]types.DetectedFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, scale := w.prepare(frame)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: w.quality()}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	faces, err := w.ProcessFrame(buf.Bytes())
	if err != nil {
		return nil, err
	}

	origin := frame.Rect.Min
	for i := range faces {
		faces[i].Box = unscaleBox(faces[i].Box, scale).Add(origin)
	}
	return faces, nil
}

// prepare downscales frames wider than MaxWidth. scale is dst/src.
func (w *PythonWorker) prepare(frame *image.RGBA) (image.Image, float64) {
	fw, fh := frame.Rect.Dx(), frame.Rect.Dy()
	if w.cfg.MaxWidth <= 0 || fw <= w.cfg.MaxWidth || fw == 0 {
		return frame, 1
	}
	scale := float64(w.cfg.MaxWidth) / float64(fw)
	dst := image.NewRGBA(image.Rect(0, 0, w.cfg.MaxWidth, int(float64(fh)*scale+0.5)))
	draw.BiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), draw.Over, nil)
	return dst, scale
}

func (w *PythonWorker) quality() int {
	if w.cfg.JPEGQuality <= 0 || w.cfg.JPEGQuality > 100 {
		return 90
	}
	return w.cfg.JPEGQuality
}

func unscaleBox(r image.Rectangle, scale float64) image.Rectangle {
	if scale == 1 || scale <= 0 {
		return r
	}
	f := func(v int) int { return int(float64(v)/scale + 0.5) }
	return image.Rect(f(r.Min.X), f(r.Min.Y), f(r.Max.X), f(r.Max.Y))
}

// decodeReply parses a reply payload.
func decodeReply(resp []byte) ([]types.DetectedFace, error) {
	rd := bytes.NewReader(resp)

	status, err := rd.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("empty worker reply")
	}

	if status != 0 {
		var msgLen uint32
		if err := binary.Read(rd, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("python worker error (unreadable message): %w", err)
		}
		if int64(msgLen) > int64(rd.Len()) {
			return nil, fmt.Errorf("python worker error (truncated message)")
		}
		msg := make([]byte, msgLen)
		io.ReadFull(rd, msg)
		return nil, fmt.Errorf("python worker error: %s", msg)
	}

	var n uint32
	if err := binary.Read(rd, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("read face count: %w", err)
	}
	if n > maxFaces {
		return nil, fmt.Errorf("implausible face count %d", n)
	}

	faces := make([]types.DetectedFace, 0, n)
	for i := uint32(0); i < n; i++ {
		var box [4]int32
		if err := binary.Read(rd, binary.BigEndian, &box); err != nil {
			return nil, fmt.Errorf("face %d: read box: %w", i, err)
		}
		var dim uint32
		if err := binary.Read(rd, binary.BigEndian, &dim); err != nil {
			return nil, fmt.Errorf("face %d: read dim: %w", i, err)
		}
		if dim > maxDim {
			return nil, fmt.Errorf("face %d: implausible embedding size %d", i, dim)
		}
		vec := make([]float32, dim)
		if err := binary.Read(rd, binary.BigEndian, vec); err != nil {
			return nil, fmt.Errorf("face %d: read embedding: %w", i, err)
		}

		emb := make([]float64, dim)
		for j, v := range vec {
			emb[j] = float64(v)
		}
		faces = append(faces, types.DetectedFace{
			Box:       image.Rect(int(box[0]), int(box[1]), int(box[2]), int(box[3])),
			Embedding: emb,
		})
	}
	return faces, nil
}

func (w *PythonWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	// A worker killed by cancellation exits non-zero; that is expected on shutdown.
	w.Cmd.Wait()
	return nil
}
