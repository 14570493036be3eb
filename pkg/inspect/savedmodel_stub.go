//go:build !tensorflow

package inspect

import "fmt"

func describeSavedModel(info *ModelInfo) error {
	return fmt.Errorf("TensorFlow support not compiled (build with -tags=tensorflow)")
}
