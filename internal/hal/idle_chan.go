//go:build !(linux && !tinygo) && !(tinygo && cortexm)

package hal

// NewIdler returns the portable idle primitive.
func NewIdler() Idler {
	return newChanIdler()
}
