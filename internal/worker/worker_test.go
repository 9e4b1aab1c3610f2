package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/jpeg"
	"math"
	"strings"
	"testing"
)

// MockCloser wraps a bytes.Buffer to satisfy io.ReadCloser and io.WriteCloser interfaces.
// This allows us to use in-memory buffers as if they were OS Pipes.
type MockCloser struct {
	*bytes.Buffer
}

func (m *MockCloser) Close() error { return nil }

type fakeFace struct {
	box [4]int32
	vec []float32
}

// okReply builds a framed status-0 reply.
func okReply(faces ...fakeFace) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(0)
	binary.Write(payload, binary.BigEndian, uint32(len(faces)))
	for _, f := range faces {
		binary.Write(payload, binary.BigEndian, f.box)
		binary.Write(payload, binary.BigEndian, uint32(len(f.vec)))
		binary.Write(payload, binary.BigEndian, f.vec)
	}
	return frame(payload.Bytes())
}

func frame(payload []byte) []byte {
	out := new(bytes.Buffer)
	binary.Write(out, binary.BigEndian, uint32(len(payload)))
	out.Write(payload)
	return out.Bytes()
}

func newMockWorker(reply []byte, cfg Config) (*PythonWorker, *MockCloser) {
	stdinMock := &MockCloser{Buffer: new(bytes.Buffer)}
	dataPipeMock := &MockCloser{Buffer: bytes.NewBuffer(reply)}
	return &PythonWorker{
		ID:       1,
		Stdin:    stdinMock,
		DataPipe: dataPipeMock,
		cfg:      cfg,
		// Cmd is nil because we aren't testing process management, just the protocol
	}, stdinMock
}

func TestProcessFrame(t *testing.T) {
	vec := make([]float32, 512)
	vec[0] = 0.5
	w, stdinMock := newMockWorker(okReply(fakeFace{box: [4]int32{10, 10, 20, 20}, vec: vec}), Config{})

	inputFrame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	resp, err := w.ProcessFrame(inputFrame)
	if err != nil {
		t.Fatalf("ProcessFrame failed: %v", err)
	}

	// 4 bytes header + 4 bytes data
	sentData := stdinMock.Bytes()
	if len(sentData) != 4+len(inputFrame) {
		t.Errorf("Expected %d bytes sent, got %d", 4+len(inputFrame), len(sentData))
	}
	if binary.BigEndian.Uint32(sentData[:4]) != uint32(len(inputFrame)) {
		t.Errorf("Wrong length prefix: %v", sentData[:4])
	}

	if len(resp) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(resp))
	}
	if resp[0].Box != image.Rect(10, 10, 20, 20) {
		t.Errorf("Unexpected box %v", resp[0].Box)
	}
	if len(resp[0].Embedding) != 512 {
		t.Fatalf("Expected 512-d embedding, got %d", len(resp[0].Embedding))
	}
	// Use epsilon for float comparison
	if math.Abs(resp[0].Embedding[0]-0.5) > 1e-9 {
		t.Errorf("Expected vector[0] approx 0.5, got %f", resp[0].Embedding[0])
	}
}

func TestProcessFrame_NoFaces(t *testing.T) {
	w, _ := newMockWorker(okReply(), Config{})
	faces, err := w.ProcessFrame([]byte("frame"))
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 0 {
		t.Errorf("Expected no faces, got %d", len(faces))
	}
}

func TestCommunicate_RejectsOversizedReply(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 0xFFFFFFF0)
	w, _ := newMockWorker(header, Config{})

	_, err := w.Communicate([]byte("frame"))
	if err == nil || !strings.Contains(err.Error(), "implausible reply size") {
		t.Errorf("Expected reply size error, got %v", err)
	}
}

func TestProcessFrame_Error(t *testing.T) {
	payload := new(bytes.Buffer)
	payload.WriteByte(1) // Status ERROR

	errMsg := "Python Exception: Import Error"
	binary.Write(payload, binary.BigEndian, uint32(len(errMsg)))
	payload.WriteString(errMsg)

	w, _ := newMockWorker(frame(payload.Bytes()), Config{})

	_, err := w.ProcessFrame([]byte("frame"))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if err.Error() != "python worker error: "+errMsg {
		t.Errorf("Expected error message '%s', got '%v'", "python worker error: "+errMsg, err)
	}
}

func TestProcessFrame_MalformedReplies(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"Empty payload", []byte{}},
		{"Missing face count", []byte{0, 0, 0}},
		{"Truncated box", append([]byte{0, 0, 0, 0, 1}, 0, 0, 0, 10)},
		{"Implausible face count", []byte{0, 0xff, 0xff, 0xff, 0xff}},
		{"Truncated error message", []byte{1, 0, 0, 0, 50, 'o', 'o', 'p', 's'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := newMockWorker(frame(tt.payload), Config{})
			if _, err := w.ProcessFrame([]byte("frame")); err == nil {
				t.Error("Expected error for malformed reply")
			}
		})
	}
}

func TestProcessFrame_DeadWorker(t *testing.T) {
	// No reply at all: the pipe hits EOF like a crashed process
	w, _ := newMockWorker(nil, Config{})
	if _, err := w.ProcessFrame([]byte("frame")); err == nil {
		t.Error("Expected error when the worker does not answer")
	}
}

func TestDetect_EncodesJPEGAndRescalesBoxes(t *testing.T) {
	// Worker sees a 320px wide image and reports a box in its coordinates
	w, stdinMock := newMockWorker(okReply(fakeFace{box: [4]int32{40, 20, 80, 60}, vec: []float32{1, 0}}), Config{MaxWidth: 320})

	src := image.NewRGBA(image.Rect(0, 0, 640, 480))
	faces, err := w.Detect(context.Background(), src)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	sent := stdinMock.Bytes()[4:]
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(sent))
	if err != nil {
		t.Fatalf("Worker did not receive a JPEG: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 {
		t.Errorf("Expected downscaled 320x240, got %dx%d", cfg.Width, cfg.Height)
	}

	if len(faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(faces))
	}
	if want := image.Rect(80, 40, 160, 120); faces[0].Box != want {
		t.Errorf("Box = %v, want %v in frame coordinates", faces[0].Box, want)
	}
}

func TestDetect_NoResizeWhenSmall(t *testing.T) {
	w, stdinMock := newMockWorker(okReply(fakeFace{box: [4]int32{1, 2, 3, 4}, vec: []float32{1}}), Config{MaxWidth: 1280})

	faces, err := w.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 48)))
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(stdinMock.Bytes()[4:]))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 64 || cfg.Height != 48 {
		t.Errorf("Expected original size, got %dx%d", cfg.Width, cfg.Height)
	}
	if faces[0].Box != image.Rect(1, 2, 3, 4) {
		t.Errorf("Unexpected box %v", faces[0].Box)
	}
}

func TestDetect_CancelledContext(t *testing.T) {
	w, stdinMock := newMockWorker(okReply(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := w.Detect(ctx, image.NewRGBA(image.Rect(0, 0, 8, 8))); err == nil {
		t.Error("Expected context error")
	}
	if stdinMock.Len() != 0 {
		t.Error("Nothing should be sent after cancellation")
	}
}
