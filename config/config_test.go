package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/LJAM96/lmsilo-core/config"
)

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	writeConfig := func(content string) {
		configPath := filepath.Join(tempDir, "config.yaml")
		err := os.WriteFile(configPath, []byte(content), 0644)
		Expect(err).NotTo(HaveOccurred())

		err = os.Chdir(tempDir)
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.Chdir(origDir)
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				writeConfig(`
server:
  address: ":8080"
  environment: "dev"

logging:
  level: "info"

circuit_defaults:
  failure_threshold: 5
  recovery_timeout: "30s"
  half_open_max_calls: 2

upstreams:
  - name: "model-loader"
    url: "http://localhost:9000"
  - name: "embedding-api"
    url: "http://localhost:9001"
    circuit:
      failure_threshold: 2
      recovery_timeout: "10s"
`)
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse circuit defaults", func() {
				cfg, _ := config.Load()
				Expect(cfg.CircuitDefaults.FailureThreshold).To(Equal(5))
				Expect(cfg.CircuitDefaults.RecoveryTimeout).To(Equal("30s"))
				Expect(cfg.CircuitDefaults.HalfOpenMaxCalls).To(Equal(2))
			})

			It("should parse upstreams with per-circuit overrides", func() {
				cfg, _ := config.Load()
				Expect(cfg.Upstreams).To(HaveLen(2))
				Expect(cfg.Upstreams[0].Name).To(Equal("model-loader"))
				Expect(cfg.Upstreams[0].Circuit.FailureThreshold).To(Equal(0))
				Expect(cfg.Upstreams[1].Circuit.FailureThreshold).To(Equal(2))
				Expect(cfg.Upstreams[1].Circuit.RecoveryTimeout).To(Equal("10s"))
			})
		})

		Context("with minimal config file", func() {
			BeforeEach(func() {
				writeConfig(`
upstreams:
  - name: "model-loader"
    url: "http://localhost:9000"
`)
			})

			It("should fall back to defaults", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Server.Address).To(Equal(":8080"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvDev))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelInfo))
				Expect(cfg.CircuitDefaults.FailureThreshold).To(Equal(3))
				Expect(cfg.CircuitDefaults.RecoveryTimeout).To(Equal("60s"))
				Expect(cfg.CircuitDefaults.HalfOpenMaxCalls).To(Equal(1))
			})
		})

		Context("with invalid config file", func() {
			It("should reject a missing upstream list", func() {
				writeConfig(`
server:
  address: ":8080"
  environment: "dev"
upstreams: []
`)
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})

			It("should reject an invalid upstream URL", func() {
				writeConfig(`
upstreams:
  - name: "model-loader"
    url: "not-a-url"
`)
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})

			It("should reject an invalid recovery timeout", func() {
				writeConfig(`
circuit_defaults:
  failure_threshold: 3
  recovery_timeout: "sixty seconds"
  half_open_max_calls: 1
upstreams:
  - name: "model-loader"
    url: "http://localhost:9000"
`)
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})

			It("should reject an unknown environment", func() {
				writeConfig(`
server:
  address: ":8080"
  environment: "production"
upstreams:
  - name: "model-loader"
    url: "http://localhost:9000"
`)
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})

			It("should reject a zero failure threshold", func() {
				writeConfig(`
circuit_defaults:
  failure_threshold: 0
  recovery_timeout: "60s"
  half_open_max_calls: 1
upstreams:
  - name: "model-loader"
    url: "http://localhost:9000"
`)
				_, err := config.Load()
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
