package entity

// Patch is a typed partial update for fields F. Implementations are usually
// structs with one pointer per field, where nil leaves the field unchanged.
type Patch[F any] interface {
	// Validate is called before the patch is applied.
	Validate() error
	// Apply returns fields with the patch merged over them.
	Apply(fields F) F
}

// PatchFunc adapts a plain function to Patch. It never fails validation.
type PatchFunc[F any] func(F) F

func (f PatchFunc[F]) Validate() error {
	return nil
}

func (f PatchFunc[F]) Apply(fields F) F {
	return f(fields)
}
