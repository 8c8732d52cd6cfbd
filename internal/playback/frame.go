package playback

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"aoe4replay/analyzer/internal/entities"
)

// Keyframe wire fields.
const (
	fieldFrameTime      protowire.Number = 1
	fieldFrameBuildings protowire.Number = 2
	fieldFrameUnits     protowire.Number = 3
	fieldFrameEntity    protowire.Number = 4
)

// FrameEntity wire fields.
const (
	fieldEntityID        protowire.Number = 1
	fieldEntityPlayer    protowire.Number = 2
	fieldEntitySubtype   protowire.Number = 3
	fieldEntityCategory  protowire.Number = 4
	fieldEntityX         protowire.Number = 5
	fieldEntityY         protowire.Number = 6
	fieldEntityUnitCount protowire.Number = 7
)

// EncodeFrame serialises a keyframe in protobuf wire format.
func EncodeFrame(k Keyframe) []byte {
	b := protowire.AppendTag(nil, fieldFrameTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(k.Time))
	b = protowire.AppendTag(b, fieldFrameBuildings, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Buildings))
	b = protowire.AppendTag(b, fieldFrameUnits, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(k.Units))
	for _, e := range k.Entities {
		b = protowire.AppendTag(b, fieldFrameEntity, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeEntity(e))
	}
	return b
}

func encodeEntity(e FrameEntity) []byte {
	b := protowire.AppendTag(nil, fieldEntityID, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(e.ID)))
	b = protowire.AppendTag(b, fieldEntityPlayer, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(e.Player)))
	b = protowire.AppendTag(b, fieldEntitySubtype, protowire.BytesType)
	b = protowire.AppendString(b, string(e.Subtype))
	b = protowire.AppendTag(b, fieldEntityCategory, protowire.BytesType)
	b = protowire.AppendString(b, string(e.Category))
	b = protowire.AppendTag(b, fieldEntityX, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(e.X))
	b = protowire.AppendTag(b, fieldEntityY, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(e.Y))
	b = protowire.AppendTag(b, fieldEntityUnitCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.UnitCount))
	return b
}

// DecodeFrame parses a keyframe produced by EncodeFrame. Unknown fields are skipped.
func DecodeFrame(b []byte) (Keyframe, error) {
	k := Keyframe{Entities: []FrameEntity{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Keyframe{}, fmt.Errorf("frame tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldFrameTime && typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return Keyframe{}, fmt.Errorf("frame time: %w", protowire.ParseError(m))
			}
			k.Time, n = math.Float64frombits(v), m
		case (num == fieldFrameBuildings || num == fieldFrameUnits) && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Keyframe{}, fmt.Errorf("frame counter %d: %w", num, protowire.ParseError(m))
			}
			if num == fieldFrameBuildings {
				k.Buildings = int(v)
			} else {
				k.Units = int(v)
			}
			n = m
		case num == fieldFrameEntity && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Keyframe{}, fmt.Errorf("frame entity: %w", protowire.ParseError(m))
			}
			e, err := decodeEntity(raw)
			if err != nil {
				return Keyframe{}, err
			}
			k.Entities = append(k.Entities, e)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Keyframe{}, fmt.Errorf("frame field %d: %w", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return k, nil
}

func decodeEntity(b []byte) (FrameEntity, error) {
	var e FrameEntity
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return FrameEntity{}, fmt.Errorf("entity tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType && (num == fieldEntityID || num == fieldEntityPlayer || num == fieldEntityUnitCount):
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return FrameEntity{}, fmt.Errorf("entity field %d: %w", num, protowire.ParseError(m))
			}
			switch num {
			case fieldEntityID:
				e.ID = int(protowire.DecodeZigZag(v))
			case fieldEntityPlayer:
				e.Player = int(protowire.DecodeZigZag(v))
			default:
				e.UnitCount = int(v)
			}
			n = m
		case typ == protowire.BytesType && (num == fieldEntitySubtype || num == fieldEntityCategory):
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return FrameEntity{}, fmt.Errorf("entity field %d: %w", num, protowire.ParseError(m))
			}
			if num == fieldEntitySubtype {
				e.Subtype = entities.Subtype(s)
			} else {
				e.Category = entities.Category(s)
			}
			n = m
		case typ == protowire.Fixed64Type && (num == fieldEntityX || num == fieldEntityY):
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return FrameEntity{}, fmt.Errorf("entity field %d: %w", num, protowire.ParseError(m))
			}
			if num == fieldEntityX {
				e.X = math.Float64frombits(v)
			} else {
				e.Y = math.Float64frombits(v)
			}
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return FrameEntity{}, fmt.Errorf("entity field %d: %w", num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return e, nil
}
