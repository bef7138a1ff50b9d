package diag

// Reporter is the minimal contract between a producer and whatever stores
// its diagnostics.
type Reporter interface {
	Report(d Diagnostic)
}

// Errorf reports an error diagnostic through r.
func Errorf(r Reporter, code Code, pos Pos, msg string) {
	if r == nil {
		return
	}
	r.Report(NewError(code, pos, msg))
}

// BagReporter writes into a *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(d)
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Diagnostic) {}
