package configure

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func checkErr(err error) {
	if err != nil {
		zap.S().Fatalw("config",
			"error", err,
		)
	}
}

func New() *Config {
	initLogging("info")

	config := viper.New()

	// Default config
	b, _ := json.Marshal(Default())
	tmp := viper.New()
	defaultConfig := bytes.NewReader(b)

	tmp.SetConfigType("json")
	checkErr(tmp.ReadConfig(defaultConfig))
	checkErr(config.MergeConfigMap(tmp.AllSettings()))

	pflag.String("config", "config.yaml", "Config file location")
	pflag.Bool("noheader", false, "Disable the startup header")

	pflag.Parse()
	checkErr(config.BindPFlags(pflag.CommandLine))

	// File
	config.SetConfigFile(config.GetString("config"))
	config.AddConfigPath(".")

	if err := config.ReadInConfig(); err == nil {
		checkErr(config.MergeInConfig())
	}

	BindEnvs(config, Config{})

	// Environment
	config.AutomaticEnv()
	config.SetEnvPrefix("LIVE")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)

	c := &Config{}
	checkErr(config.Unmarshal(&c))

	initLogging(c.Level)

	return c
}

func BindEnvs(config *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)

	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)

		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			BindEnvs(config, v.Interface(), append(parts, tv)...)
		default:
			_ = config.BindEnv(strings.Join(append(parts, tv), "."))
		}
	}
}

type AccessMode string

const (
	// AccessModeOpen grants read access to every identified caller
	AccessModeOpen AccessMode = "OPEN"
	// AccessModeHTTP asks the board service whether the caller may read the board
	AccessModeHTTP AccessMode = "HTTP"
)

// Default returns the configuration used before any file, flag or environment is applied.
func Default() Config {
	c := Config{
		Level:      "info",
		ConfigFile: "config.yaml",
	}

	c.Http.Addr = "0.0.0.0"
	c.Http.Ports.REST = 3000
	c.Http.Ports.WS = 3001
	c.Http.WS.HeartbeatInterval = 30 * time.Second
	c.Http.WS.SendBuffer = 256

	c.Health.Bind = "0.0.0.0:9200"
	c.Monitoring.Bind = "0.0.0.0:9100"
	c.PProf.Bind = "127.0.0.1:9300"

	c.Realtime.EventLogCap = 5000
	c.Realtime.StalenessWindow = 120 * time.Second
	c.Realtime.ChannelTemplate = "board.{{board}}.{{kind}}"
	c.Realtime.GuestPrefix = "Guest"
	c.Realtime.Reaper.Interval = time.Minute
	c.Realtime.Reaper.MaxIdle = 30 * time.Minute

	c.Access.Mode = AccessModeOpen
	c.Access.CacheTTL = 30 * time.Second
	c.Access.Timeout = 2 * time.Second

	c.Nats.URL = "nats://127.0.0.1:4222"
	c.Nats.SubjectPrefix = "live"
	c.Nats.Name = "collabodraw-live"
	c.Nats.BridgeSubject = "live.bridge"
	c.Nats.BridgeQueue = "live-bridge"

	return c
}

type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	ConfigFile string `mapstructure:"config" json:"config"`
	NoHeader   bool   `mapstructure:"noheader" json:"noheader"`

	K8S struct {
		NodeName string `mapstructure:"node_name" json:"node_name"`
		PodName  string `mapstructure:"pod_name" json:"pod_name"`
	} `mapstructure:"k8s" json:"k8s"`

	Health struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"health" json:"health"`

	Monitoring struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
		Labels  Labels `mapstructure:"labels" json:"labels"`
	} `mapstructure:"monitoring" json:"monitoring"`

	PProf struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"pprof" json:"pprof"`

	Http struct {
		Addr          string `mapstructure:"addr" json:"addr"`
		VersionSuffix string `mapstructure:"version_suffix" json:"version_suffix"`
		Ports         struct {
			REST int `mapstructure:"rest" json:"rest"`
			WS   int `mapstructure:"ws" json:"ws"`
		} `mapstructure:"ports" json:"ports"`
		// AllowedOrigins may send credentialed cross-origin requests
		AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`

		WS struct {
			HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
			// SendBuffer is how many envelopes may queue for a slow connection before they are dropped
			SendBuffer int `mapstructure:"send_buffer" json:"send_buffer"`
		} `mapstructure:"ws" json:"ws"`
	} `mapstructure:"http" json:"http"`

	Realtime struct {
		// EventLogCap is the most events kept per board for late joiners
		EventLogCap int `mapstructure:"event_log_cap" json:"event_log_cap"`
		// StalenessWindow is how long a session stays visible without a heartbeat
		StalenessWindow time.Duration `mapstructure:"staleness_window" json:"staleness_window"`
		// LogVersions makes version tags replayable through the event log
		LogVersions     bool   `mapstructure:"log_versions" json:"log_versions"`
		ChannelTemplate string `mapstructure:"channel_template" json:"channel_template"`
		GuestPrefix     string `mapstructure:"guest_prefix" json:"guest_prefix"`

		Reaper struct {
			Enabled  bool          `mapstructure:"enabled" json:"enabled"`
			Interval time.Duration `mapstructure:"interval" json:"interval"`
			MaxIdle  time.Duration `mapstructure:"max_idle" json:"max_idle"`
		} `mapstructure:"reaper" json:"reaper"`
	} `mapstructure:"realtime" json:"realtime"`

	Access struct {
		Mode     AccessMode    `mapstructure:"mode" json:"mode"`
		URL      string        `mapstructure:"url" json:"url"`
		CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
		Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
	} `mapstructure:"access" json:"access"`

	Nats struct {
		Enabled       bool   `mapstructure:"enabled" json:"enabled"`
		URL           string `mapstructure:"url" json:"url"`
		Name          string `mapstructure:"name" json:"name"`
		SubjectPrefix string `mapstructure:"subject_prefix" json:"subject_prefix"`
		// BridgeSubject receives actions submitted by other services
		BridgeSubject string `mapstructure:"bridge_subject" json:"bridge_subject"`
		// BridgeQueue is the queue group sharing bridge commands between nodes
		BridgeQueue string `mapstructure:"bridge_queue" json:"bridge_queue"`
	} `mapstructure:"nats" json:"nats"`

	Credentials struct {
		JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"`
		JWTIssuer string `mapstructure:"jwt_issuer" json:"jwt_issuer"`
	} `mapstructure:"credentials" json:"credentials"`
}

type Labels []struct {
	Key   string `mapstructure:"key" json:"key"`
	Value string `mapstructure:"value" json:"value"`
}

func (l Labels) ToPrometheus() prometheus.Labels {
	mp := prometheus.Labels{}

	for _, v := range l {
		mp[v.Key] = v.Value
	}

	return mp
}
