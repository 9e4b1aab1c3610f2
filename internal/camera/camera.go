// Package camera adapts an OpenCV webcam and HighGUI window to the live loop.
package camera

import (
	"context"
	"fmt"
	"image"

	"github.com/andresmejia3/memento/internal/utils"
	"gocv.io/x/gocv"
)

// Webcam captures frames from a local video device.
type Webcam struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int

	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// NewWebcam returns a webcam requesting 640x480 at 30 FPS.
func NewWebcam(deviceID int) *Webcam {
	return &Webcam{DeviceID: deviceID, Width: 640, Height: 480, FPS: 30}
}

func (w *Webcam) Open(ctx context.Context) error {
	capture, err := gocv.OpenVideoCapture(w.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", w.DeviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("camera %d is not available", w.DeviceID)
	}

	// Keep only the newest frame so detection latency does not pile up
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	if w.FPS > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(w.FPS))
	}
	if w.Width > 0 && w.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(w.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(w.Height))
	}

	w.capture = capture
	w.mat = gocv.NewMat()
	return nil
}

// Read blocks until the device delivers a frame.
func (w *Webcam) Read(ctx context.Context) (*image.RGBA, error) {
	if w.capture == nil {
		return nil, fmt.Errorf("camera %d is not open", w.DeviceID)
	}
	if ok := w.capture.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, fmt.Errorf("cannot read from camera %d", w.DeviceID)
	}
	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return utils.ToRGBA(img), nil
}

func (w *Webcam) Close() error {
	if w.capture == nil {
		return nil
	}
	w.mat.Close()
	err := w.capture.Close()
	w.capture = nil
	return err
}

// Window shows frames in a HighGUI window and reads the keyboard.
type Window struct {
	Title string

	win  *gocv.Window
	last *gocv.Mat // shown frame, kept alive until the next Show
}

func NewWindow(title string) *Window {
	return &Window{Title: title}
}

func (w *Window) Show(frame *image.RGBA) error {
	if w.win == nil {
		w.win = gocv.NewWindow(w.Title)
	}
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	w.win.IMShow(mat)
	w.release()
	w.last = &mat
	return nil
}

func (w *Window) release() {
	if w.last != nil {
		w.last.Close()
		w.last = nil
	}
}

// PollKey waits 1ms for a key press, which also lets HighGUI repaint.
func (w *Window) PollKey() (rune, bool) {
	if w.win == nil {
		return 0, false
	}
	return keyFromCode(w.win.WaitKey(1))
}

func (w *Window) Close() error {
	w.release()
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}

// keyFromCode maps a WaitKey result to a printable key.
func keyFromCode(code int) (rune, bool) {
	if code < 0 {
		return 0, false
	}
	code &= 0xff
	if code < 0x20 || code > 0x7e {
		return 0, false
	}
	return rune(code), true
}
