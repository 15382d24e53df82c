package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Sea View Apartment":         "sea-view-apartment",
		"  Villa -- in   Ramallah!! ": "villa-in-ramallah",
		"3 Bedroom Flat, 2nd floor":  "3-bedroom-flat-2nd-floor",
		"شقة للبيع في نابلس":          "شقة-للبيع-في-نابلس",
		"مَدْرَسَة":                    "مدرسة",
		"!!!":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}
