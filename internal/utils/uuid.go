package utils

import "github.com/google/uuid"

// UUIDGenerator produces ids for notes and blobs. UUIDv7 is time-ordered,
// so ids sort by creation without a separate sequence.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
