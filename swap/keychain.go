package swap

var (
	// KeyFamily is the key family used to derive the server keys that
	// claim swap outputs.
	KeyFamily = uint32(99)
)
