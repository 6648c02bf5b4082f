package payload_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/geolab/lake-stager/payload"
)

var _ = Describe("Payload", func() {
	It("keeps the body verbatim", func() {
		p, err := Parse([]byte(`  {"value": 29.10000000000000001, "id": "S24"}` + "\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p.Bytes())).To(Equal(`{"value": 29.10000000000000001, "id": "S24"}`))

		out, err := json.Marshal(map[string]Payload{"data": p})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal(`{"data":{"value":29.10000000000000001,"id":"S24"}}`))
	})

	It("decodes numbers without losing precision", func() {
		p, err := Parse([]byte(`{"n": 12345678901234567890}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Value()).To(HaveKeyWithValue("n", json.Number("12345678901234567890")))
	})

	It("rejects invalid json", func() {
		_, err := Parse([]byte(`<html>Service Unavailable</html>`))
		Expect(err).To(HaveOccurred())
	})

	It("rejects empty bodies", func() {
		_, err := Parse([]byte("  "))
		Expect(err).To(MatchError(EmptyBodyError))
	})

	It("rejects trailing data", func() {
		_, err := Parse([]byte(`{"a":1} {"b":2}`))
		Expect(err).To(MatchError(TrailingDataError))
	})

	It("round-trips through json", func() {
		var p Payload
		Expect(json.Unmarshal([]byte(`{"features":[{},{}]}`), &p)).To(Succeed())
		Expect(Count(p)).To(Equal(2))
	})

	It("marshals the zero value as null", func() {
		out, err := json.Marshal(Payload{})
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(Equal("null"))
	})
})
