package adapter

// boolPtr and float64Ptr build pointers to literals for constructing
// partial-update structs (admin PATCH-style filters/bulk ops) inline.
func boolPtr(v bool) *bool { return &v }

func float64Ptr(v float64) *float64 { return &v }
