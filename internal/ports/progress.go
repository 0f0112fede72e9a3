package ports

// ProgressHandler receives pipeline progress and carries the cancellation
// flag. Long stages poll Canceled between units of work and unwind without
// error when it turns true; whatever was flushed before stays valid.
type ProgressHandler interface {
	// SetTitle announces the stage that is starting.
	SetTitle(title string)

	// SetMax fixes the number of work units of the current stage.
	SetMax(n int)

	// Step marks one unit of work done.
	Step()

	// Report appends one line to the processing report shown at the end.
	Report(line string)

	// Cancel requests a non-destructive early stop.
	Cancel()

	// Canceled reports whether a stop was requested.
	Canceled() bool

	// Done marks the run finished.
	Done()
}

// NopProgress is a ProgressHandler that records nothing and never cancels.
// Zero value is ready to use.
type NopProgress struct{}

func (NopProgress) SetTitle(string) {}
func (NopProgress) SetMax(int)      {}
func (NopProgress) Step()           {}
func (NopProgress) Report(string)   {}
func (NopProgress) Cancel()         {}
func (NopProgress) Canceled() bool  { return false }
func (NopProgress) Done()           {}
