package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies Watermill message metadata.
func FromWatermill(md message.Metadata) Metadata {
	return Metadata(md).Clone()
}

// ToWatermill copies m into Watermill message metadata.
func ToWatermill(m Metadata) message.Metadata {
	return message.Metadata(m.Clone())
}
