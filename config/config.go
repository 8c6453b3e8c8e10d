package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Recolor    RecolorConfig    `mapstructure:"recolor"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize          int64    `mapstructure:"max_size"`
	UploadDir        string   `mapstructure:"upload_dir"`
	AllowedTypes     []string `mapstructure:"allowed_types"`
	CleanupTempFiles bool     `mapstructure:"cleanup_temp_files"`
}

type ClassifierConfig struct {
	ColorThreshold float64 `mapstructure:"color_threshold"` // 区域生长的RGB距离阈值
	EdgeThreshold  float64 `mapstructure:"edge_threshold"`  // Sobel梯度幅值阈值
	MinConfidence  float64 `mapstructure:"min_confidence"`  // 低于该置信度的分类不输出
	MaxDimension   int     `mapstructure:"max_dimension"`   // 分类前的最大边长，超过则缩放
	MaxConcurrent  int     `mapstructure:"max_concurrent"`
	QueueTimeout   int     `mapstructure:"queue_timeout"` // 秒
	Jitter         bool    `mapstructure:"jitter"`        // 掩码边界随机抖动
	JitterSeed     int64   `mapstructure:"jitter_seed"`
}

type RecolorConfig struct {
	PreviewScale float64 `mapstructure:"preview_scale"`
	DebounceMS   int     `mapstructure:"debounce_ms"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.upload_dir", "./uploads")
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})
	v.SetDefault("upload.cleanup_temp_files", true)

	v.SetDefault("classifier.color_threshold", 30.0)
	v.SetDefault("classifier.edge_threshold", 50.0)
	v.SetDefault("classifier.min_confidence", 0.1)
	v.SetDefault("classifier.max_dimension", 1200)
	v.SetDefault("classifier.max_concurrent", 3)
	v.SetDefault("classifier.queue_timeout", 30)
	v.SetDefault("classifier.jitter", false)
	v.SetDefault("classifier.jitter_seed", 1)

	v.SetDefault("recolor.preview_scale", 0.25)
	v.SetDefault("recolor.debounce_ms", 100)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:          10 * 1024 * 1024,
			UploadDir:        "./uploads",
			AllowedTypes:     []string{"image/jpeg", "image/png", "image/jpg"},
			CleanupTempFiles: true,
		},
		Classifier: ClassifierConfig{
			ColorThreshold: 30.0,
			EdgeThreshold:  50.0,
			MinConfidence:  0.1,
			MaxDimension:   1200,
			MaxConcurrent:  3,
			QueueTimeout:   30,
			Jitter:         false,
			JitterSeed:     1,
		},
		Recolor: RecolorConfig{
			PreviewScale: 0.25,
			DebounceMS:   100,
		},
	}
}
