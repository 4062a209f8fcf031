package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Defaults", func() {
	It("sets server port 8080 and host 127.0.0.1", func() {
		cfg := Defaults()
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.Server.Host).To(Equal("127.0.0.1"))
	})

	It("requires the secret and accepts forms", func() {
		cfg := Defaults()
		Expect(cfg.Secret.Required).To(BeTrue())
		Expect(cfg.Body.FormURLEncoded).To(BeTrue())
		Expect(cfg.Body.MaxBytes).To(Equal(int64(1 << 20)))
	})
})

var _ = Describe("Load", func() {
	writeConfig := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0644)).NotTo(HaveOccurred())
		return path
	}

	When("loading from a valid file", func() {
		It("overrides defaults with file values", func() {
			path := writeConfig(`
server:
  host: "0.0.0.0"
  port: 9090
  read_timeout: 10s
  write_timeout: 60s
secret:
  file: "/run/secrets/botgate"
  required: false
body:
  max_bytes: 4096
  form_urlencoded: false
log:
  level: "debug"
  format: "text"
  cloud_format: "gcp"
`)

			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Host).To(Equal("0.0.0.0"))
			Expect(cfg.Server.Port).To(Equal(9090))
			Expect(cfg.Server.WriteTimeout).To(Equal(60 * time.Second))
			Expect(cfg.Secret.File).To(Equal("/run/secrets/botgate"))
			Expect(cfg.Secret.Required).To(BeFalse())
			Expect(cfg.Body.MaxBytes).To(Equal(int64(4096)))
			Expect(cfg.Body.FormURLEncoded).To(BeFalse())
			Expect(cfg.Log.Level).To(Equal("debug"))
			Expect(cfg.Log.CloudFormat).To(Equal("gcp"))
		})
	})

	When("environment variables are set", func() {
		It("overrides file values with env", func() {
			path := writeConfig(`
server:
  port: 8080
secret:
  required: true
log:
  level: "info"
`)
			GinkgoT().Setenv("BOTGATE_PORT", "3000")
			GinkgoT().Setenv("BOTGATE_LOG_LEVEL", "DEBUG")
			GinkgoT().Setenv("BOTGATE_SECRET_REQUIRED", "false")

			cfg, err := Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.Port).To(Equal(3000))
			Expect(cfg.Log.Level).To(Equal("debug"))
			Expect(cfg.Secret.Required).To(BeFalse())
		})

		It("reports every malformed value", func() {
			GinkgoT().Setenv("BOTGATE_PORT", "eighty")
			GinkgoT().Setenv("BOTGATE_OTEL_ENABLED", "maybe")

			_, err := Load("")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("BOTGATE_PORT"))
			Expect(err.Error()).To(ContainSubstring("BOTGATE_OTEL_ENABLED"))
		})
	})

	When("the file does not exist", func() {
		It("returns an error", func() {
			_, err := Load("/nonexistent/config.yaml")
			Expect(err).To(HaveOccurred())
		})
	})

	When("the file is not YAML", func() {
		It("returns an error", func() {
			_, err := Load(writeConfig("server: [unterminated"))
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Validation", func() {
	When("config is valid", func() {
		It("returns no error", func() {
			cfg := Defaults()
			Expect(validate(cfg)).NotTo(HaveOccurred())
		})
	})

	When("port is zero", func() {
		It("returns an error", func() {
			cfg := Defaults()
			cfg.Server.Port = 0
			Expect(validate(cfg)).To(HaveOccurred())
		})
	})

	When("port is too high", func() {
		It("returns an error", func() {
			cfg := Defaults()
			cfg.Server.Port = 70000
			Expect(validate(cfg)).To(HaveOccurred())
		})
	})

	When("body limit is negative", func() {
		It("returns an error", func() {
			cfg := Defaults()
			cfg.Body.MaxBytes = -1
			Expect(validate(cfg)).To(HaveOccurred())
		})
	})

	When("log level is invalid", func() {
		It("returns an error", func() {
			cfg := Defaults()
			cfg.Log.Level = "verbose"
			Expect(validate(cfg)).To(HaveOccurred())
		})
	})

	When("OTel is enabled but endpoint is empty", func() {
		It("returns an error", func() {
			cfg := Defaults()
			cfg.Observability.OTelEnabled = true
			cfg.Observability.OTelEndpoint = ""
			Expect(validate(cfg)).To(HaveOccurred())
		})
	})

	When("several fields are invalid", func() {
		It("reports all of them", func() {
			cfg := Defaults()
			cfg.Server.Port = 0
			cfg.Log.Format = "xml"
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("server.port"))
			Expect(err.Error()).To(ContainSubstring("log.format"))
		})
	})
})

var _ = Describe("Server Addr", func() {
	It("returns host:port", func() {
		s := Server{Host: "0.0.0.0", Port: 3000}
		Expect(s.Addr()).To(Equal("0.0.0.0:3000"))
	})
})
