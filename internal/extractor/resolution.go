package extractor

// Resolution is the outcome of statically evaluating a generated list of
// names. A partial resolution carries the values that could be determined
// and a note describing what was skipped.
type Resolution struct {
	Values   []string
	Complete bool
	Note     string
}

func Resolved(values []string) Resolution {
	return Resolution{Values: values, Complete: true}
}

func PartiallyResolved(values []string, note string) Resolution {
	return Resolution{Values: values, Complete: false, Note: note}
}

func (r Resolution) Partial() bool {
	return !r.Complete
}
