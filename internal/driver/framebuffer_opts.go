package driver

// FramebufferOpts configures the fbdev backend.
type FramebufferOpts struct {
	// Path defaults to /dev/fb0.
	Path string

	// LogicalWidth/LogicalHeight set the canvas the engine lays out into.
	// Zero means the device resolution.
	LogicalWidth  int
	LogicalHeight int

	// Backlight is optional; without it brightness is tracked but not applied.
	Backlight BacklightDevice
}
