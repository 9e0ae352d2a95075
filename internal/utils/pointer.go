package utils

// Ptr returns a pointer to v, for optional fields of wire structs.
//
// Example:
//
//	request.Temperature = utils.Ptr(0.2)
func Ptr[T any](v T) *T {
	return &v
}
