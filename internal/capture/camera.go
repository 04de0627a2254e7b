// Package capture provides live-frame sources for the compositor engine
// using GoCV (OpenCV).
package capture

import (
	"errors"
	"image"
	"image/draw"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera is a live-frame source with device lifecycle. Frame, Dimensions and
// Ready satisfy the compositor engine's FrameSource contract.
type Camera interface {
	Open() error
	Close() error
	Frame() (*image.RGBA, error)
	Dimensions() (width, height int)
	Ready() bool
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// cameraImpl captures frames from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	width    int
	height   int
}

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		fps:      DefaultFPS,
	}
}

// Open opens the camera for capturing frames, requesting the default
// resolution and frame rate.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false
	c.width = 0
	c.height = 0

	return err
}

// Frame reads the current frame and converts it into an RGBA raster. The
// returned buffer is owned by the caller.
func (c *cameraImpl) Frame() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := c.capture.Read(&mat); !ok {
		return nil, errors.New("failed to read frame from camera")
	}
	if mat.Empty() {
		return nil, errors.New("captured frame is empty")
	}

	// Remember the native resolution the device actually delivers.
	c.width = mat.Cols()
	c.height = mat.Rows()

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}
	return toRGBA(img), nil
}

// Dimensions returns the native resolution reported by the device. Both are
// zero until the first frame has been read.
func (c *cameraImpl) Dimensions() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Ready reports whether the camera is open and deliverable.
func (c *cameraImpl) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// toRGBA returns img as an *image.RGBA, converting only when the capture
// backend did not already produce one.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba
}
