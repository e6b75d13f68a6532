// Package prompt builds the task-specific instructions sent to the
// generative providers. Every JSON-producing template states the
// strict-JSON contract, embeds the expected schema inline, and names
// the sentinel to return when the model cannot answer.
package prompt

import (
	"fmt"
	"math"
	"strings"
)

// SystemInstruction is the shared system message for chat-style
// providers.
const SystemInstruction = "You are a pharmaceutical information assistant for an Indian " +
	"consumer medicine lookup. Answer strictly in the requested format. " +
	"Never wrap JSON in markdown code fences."

// IdentifyMedicine asks the model to describe a medicine absent from
// the local catalog, shaped like a catalog record. Prices are
// best-effort estimates in INR.
func IdentifyMedicine(name string) string {
	return fmt.Sprintf(`A user searched for a medicine named "%s" that is not in our catalog.
If this is a real medicine sold in India, return ONLY a JSON object with exactly these keys:
{
  "brand_name": "string",
  "salt_composition": "string",
  "strength": "string",
  "dosage_form": "string",
  "manufacturer_name": "string",
  "pack_size_label": "string",
  "price": 0.0,
  "is_generic": false,
  "description": "one or two sentence plain-language summary",
  "affiliate_link": "string"
}
Use your best estimate for price (a number in INR, no currency symbol).
For affiliate_link, synthesize a search URL for the medicine on a well-known
Indian online pharmacy (1mg, PharmEasy or Netmeds), for example
"https://www.1mg.com/search/all?name=%s".
Do not add markdown fences or any commentary. If you do not recognize the
medicine, return exactly: null`, name, name)
}

// FindSubstitutes asks the model for cheaper equivalents sharing the
// same active salt. Name and price describe the source medicine when
// known; an empty name or a price that is not a real figure (zero or
// the unbounded comparison sentinel) is left out of the prompt.
func FindSubstitutes(name, saltComposition string, price float64) string {
	var sb strings.Builder

	if name != "" {
		fmt.Fprintf(&sb, `Find cheaper substitute medicines available in India for "%s"
with salt composition "%s"`, name, saltComposition)
	} else {
		fmt.Fprintf(&sb, `Find cheaper substitute medicines available in India
with salt composition "%s"`, saltComposition)
	}
	if price > 0 && price < math.MaxFloat64 {
		fmt.Fprintf(&sb, " currently priced at %.2f INR", price)
	}

	sb.WriteString(`.
Return ONLY a JSON array of objects, each with exactly these keys:
[
  {
    "brand_name": "string",
    "salt_composition": "string",
    "manufacturer_name": "string",
    "pack_size_label": "string",
    "price": 0.0,
    "is_generic": true
  }
]
Only include medicines with the same active salt`)
	if price > 0 && price < math.MaxFloat64 {
		sb.WriteString(" and a lower estimated price")
	}
	sb.WriteString(`,
ordered from cheapest to most expensive. Prices are numbers in INR.
Do not add markdown fences or any commentary. If you know of no substitutes,
return exactly: []`)

	return sb.String()
}

// Translate asks for a bare translation with no JSON wrapping.
func Translate(text, targetLanguage string) string {
	return fmt.Sprintf(`Translate the following text to %s.
Return only the translated text, with no quotes, labels or commentary.

%s`, targetLanguage, text)
}

// ReadPrescription asks a vision-capable model to list the medicine
// names legible in a prescription image.
func ReadPrescription() string {
	return `The attached image is a medical prescription.
List every medicine name you can read in it.
Return ONLY a JSON array of plain strings, for example: ["Dolo 650", "Pan 40"].
Do not include dosage instructions, frequencies or any commentary.
Do not add markdown fences. If no medicine names are legible, return exactly: []`
}
