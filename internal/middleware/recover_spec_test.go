package middleware

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Recover", func() {
	It("answers a panic with a bare 500", func() {
		before := testutil.ToFloat64(PanicsRecovered)
		h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("database password is hunter2")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"500 Internal Server Error"}`))
		Expect(rec.Body.String()).NotTo(ContainSubstring("hunter2"))
		Expect(testutil.ToFloat64(PanicsRecovered)).To(Equal(before + 1))
	})

	It("re-panics on http.ErrAbortHandler", func() {
		h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		Expect(func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}).To(PanicWith(http.ErrAbortHandler))
	})

	It("passes through when nothing panics", func() {
		h := Recover(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})
})
