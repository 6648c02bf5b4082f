package network_test

import (
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elazarl/goproxy"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	. "github.com/geolab/lake-stager/network"
)

var _ = Describe("Client", func() {
	Describe("TLS verification", func() {
		var server *ghttp.Server

		BeforeEach(func() {
			server = ghttp.NewTLSServer()
			server.HTTPTestServer.Config.ErrorLog = log.New(GinkgoWriter, "", 0)
			server.RouteToHandler(http.MethodGet, "/", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})

		AfterEach(func() {
			server.Close()
		})

		Context("when SkipTLSVerification is false", func() {
			It("rejects invalid certificates", func() {
				client, err := NewClient(Options{})
				Expect(err).NotTo(HaveOccurred())

				req, err := http.NewRequest(http.MethodGet, server.URL(), strings.NewReader("request-body"))
				Expect(err).NotTo(HaveOccurred())

				_, err = client.Do(req)
				Expect(err).To(MatchError(ContainSubstring("certificate")))
			})
		})

		Context("when SkipTLSVerification is true", func() {
			It("does not verify certificates", func() {
				client, err := NewClient(Options{SkipTLSVerification: true})
				Expect(err).NotTo(HaveOccurred())

				req, err := http.NewRequest(http.MethodGet, server.URL(), nil)
				Expect(err).NotTo(HaveOccurred())

				resp, err := client.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			})
		})
	})

	Describe("Timeout", func() {
		var slowServer *ghttp.Server

		BeforeEach(func() {
			slowServer = ghttp.NewServer()
			slowServer.AppendHandlers(func(w http.ResponseWriter, req *http.Request) {
				time.Sleep(1 * time.Second)
			})
		})

		AfterEach(func() {
			slowServer.Close()
		})

		It("fails with a timeout error when the upstream is slow", func() {
			client, err := NewClient(Options{Timeout: 200 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Get(slowServer.URL())
			Expect(err).To(HaveOccurred())
			netErr, ok := err.(net.Error)
			Expect(ok).To(BeTrue())
			Expect(netErr.Timeout()).To(BeTrue())
		})

		It("defaults to thirty seconds", func() {
			client, err := NewClient(Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(client.Timeout).To(Equal(DefaultTimeout))
		})
	})

	Describe("Proxy", func() {
		var (
			target      *ghttp.Server
			proxyServer *httptest.Server
			proxied     int32
		)

		BeforeEach(func() {
			atomic.StoreInt32(&proxied, 0)
			target = ghttp.NewServer()
			target.RouteToHandler(http.MethodGet, "/rainfall", ghttp.RespondWith(http.StatusOK, `{"data":{"stations":[]}}`))

			proxy := goproxy.NewProxyHttpServer()
			proxy.OnRequest().DoFunc(
				func(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
					atomic.AddInt32(&proxied, 1)
					return r, nil
				},
			)
			proxyServer = httptest.NewServer(proxy)
		})

		AfterEach(func() {
			proxyServer.Close()
			target.Close()
		})

		It("routes requests through the configured proxy", func() {
			client, err := NewClient(Options{ProxyURL: proxyServer.URL})
			Expect(err).NotTo(HaveOccurred())

			resp, err := client.Get(target.URL() + "/rainfall")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(atomic.LoadInt32(&proxied)).To(Equal(int32(1)))
			Expect(target.ReceivedRequests()).To(HaveLen(1))
		})

		It("errors for an unparseable proxy url", func() {
			_, err := NewClient(Options{ProxyURL: " bad://url"})
			Expect(err).To(MatchError(ContainSubstring("error parsing proxy URL")))
		})
	})

	Describe("Pacing", func() {
		var server *ghttp.Server

		BeforeEach(func() {
			server = ghttp.NewServer()
			server.RouteToHandler(http.MethodGet, "/", ghttp.RespondWith(http.StatusOK, "{}"))
		})

		AfterEach(func() {
			server.Close()
		})

		It("spaces requests to the configured rate", func() {
			client, err := NewClient(Options{RequestsPerSecond: 5})
			Expect(err).NotTo(HaveOccurred())

			start := time.Now()
			for i := 0; i < 3; i++ {
				resp, err := client.Get(server.URL())
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
			}
			Expect(time.Since(start)).To(BeNumerically(">=", 350*time.Millisecond))
		})
	})
})
