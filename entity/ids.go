package entity

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator returns a new entity id on every call.
type IDGenerator func() string

// UUIDGenerator returns random (version 4) UUIDs. It is the default.
func UUIDGenerator() IDGenerator {
	return func() string {
		return uuid.NewString()
	}
}

// VariantIDGenerator returns ids shaped "var-<unixMillis>-<0..999>", with
// "-<suffix>" appended when suffix is not empty.
func VariantIDGenerator(suffix string) IDGenerator {
	return variantIDGenerator(suffix, time.Now, func() int { return rand.IntN(1000) })
}

func variantIDGenerator(suffix string, now func() time.Time, random func() int) IDGenerator {
	return func() string {
		id := fmt.Sprintf("var-%d-%d", now().UnixMilli(), random())
		if suffix != "" {
			id += "-" + suffix
		}
		return id
	}
}

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... It is safe for
// concurrent use and mostly useful in tests.
func SequenceGenerator(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
