//go:build tensorflow

package inspect

import (
	"fmt"
	"sort"

	tf "github.com/wamuir/graft/tensorflow"
)

// servingSignature is the signature exported by tf.saved_model.save.
const servingSignature = "serving_default"

var tfTypeNames = map[tf.DataType]string{
	tf.Float:  "float32",
	tf.Double: "float64",
	tf.Int32:  "int32",
	tf.Int64:  "int64",
	tf.Int16:  "int16",
	tf.Int8:   "int8",
	tf.Uint8:  "uint8",
	tf.String: "string",
	tf.Bool:   "bool",
	tf.Half:   "float16",
}

func describeSavedModel(info *ModelInfo) error {
	model, err := tf.LoadSavedModel(info.Path, []string{"serve"}, nil)
	if err != nil {
		return fmt.Errorf("failed to load SavedModel: %w", err)
	}
	defer model.Session.Close()

	sig, ok := model.Signatures[servingSignature]
	if !ok {
		return fmt.Errorf("SavedModel has no %s signature", servingSignature)
	}
	info.Inputs = signatureTensors(sig.Inputs)
	info.Outputs = signatureTensors(sig.Outputs)
	return nil
}

func signatureTensors(m map[string]tf.TensorInfo) []TensorInfo {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TensorInfo, 0, len(keys))
	for _, k := range keys {
		ti := m[k]
		shape, err := ti.Shape.ToSlice()
		if err != nil {
			shape = nil
		}
		typ, ok := tfTypeNames[ti.DType]
		if !ok {
			typ = fmt.Sprintf("tf_type_%d", int(ti.DType))
		}
		out = append(out, TensorInfo{Name: ti.Name, Shape: shape, Type: typ})
	}
	return out
}
