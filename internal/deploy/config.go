// Package deploy описывает ресурсы конвейера в GCP и строит команды
// gcloud/gsutil/docker для их развёртывания и удаления.
//
// Каждое имя ресурса (функция, топик, образ, шаблон, задача планировщика)
// определено ровно в одном месте, и deploy, и teardown берут его отсюда.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Переменные окружения конфигурации.
const (
	EnvProject        = "GCP_PROJECT"
	EnvServiceAccount = "SERVICE_ACCOUNT_EMAIL"
	EnvRegion         = "GCP_REGION"
	EnvBucket         = "GCS_BUCKET"
	EnvDataset        = "DATASET_ID"
	EnvTempLocation   = "TEMP_LOCATION"
	EnvTemplatePath   = "DATAFLOW_TEMPLATE_PATH"
	EnvDBHost         = "PPDB_DB_HOST"
	EnvDBUser         = "PPDB_DB_USER"
	EnvDBName         = "PPDB_DB_NAME"
	EnvSchema         = "PPDB_SCHEMA_NAME"
	EnvCredentials    = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvRuntime        = "FUNCTION_RUNTIME"
)

// DefaultRegion — регион, если не заданы ни GCP_REGION, ни REGION.
const DefaultRegion = "us-central1"

// DefaultRuntime — runtime Cloud Functions.
const DefaultRuntime = "go125"

// knownVars — все переменные конфигурации и их альтернативные имена.
var knownVars = map[string][]string{
	EnvProject:        {EnvProject},
	EnvServiceAccount: {EnvServiceAccount},
	EnvRegion:         {EnvRegion, "REGION"},
	EnvBucket:         {EnvBucket},
	EnvDataset:        {EnvDataset},
	EnvTempLocation:   {EnvTempLocation},
	EnvTemplatePath:   {EnvTemplatePath},
	EnvDBHost:         {EnvDBHost},
	EnvDBUser:         {EnvDBUser},
	EnvDBName:         {EnvDBName},
	EnvSchema:         {EnvSchema},
	EnvCredentials:    {EnvCredentials},
	EnvRuntime:        {EnvRuntime},
}

// Config — конфигурация развёртывания.
//
// Значения берутся из окружения; YAML-файл (ключи — имена переменных
// в нижнем регистре) задаёт значения по умолчанию.
type Config struct {
	values map[string]string
	file   string

	// regionDefaulted — регион не задан и взят DefaultRegion.
	regionDefaulted bool
}

// Load читает конфигурацию. Пустой path — только окружение.
// Отсутствующий файл не является ошибкой.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault(key(EnvRuntime), DefaultRuntime)

	for name, env := range knownVars {
		if err := v.BindEnv(append([]string{key(name)}, env...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{values: make(map[string]string, len(knownVars)), file: v.ConfigFileUsed()}
	for name := range knownVars {
		cfg.values[name] = v.GetString(key(name))
	}
	cfg.applyDefaults()
	return cfg, nil
}

// NewConfig создаёт конфигурацию из готовых значений (тесты, встраивание).
func NewConfig(values map[string]string) *Config {
	cfg := &Config{values: map[string]string{
		EnvRuntime: DefaultRuntime,
	}}
	for k, v := range values {
		cfg.values[k] = v
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults заполняет регион и путь шаблона, если они не заданы.
// Путь шаблона выводится из bucket, чтобы шаблон и stage_chunk
// использовали одно значение.
func (c *Config) applyDefaults() {
	if c.values[EnvRegion] == "" {
		c.values[EnvRegion] = DefaultRegion
		c.regionDefaulted = true
	}
	if c.values[EnvTemplatePath] == "" && c.values[EnvBucket] != "" {
		c.values[EnvTemplatePath] = fmt.Sprintf("gs://%s/%s", c.values[EnvBucket], TemplateObject)
	}
}

func key(env string) string {
	return strings.ToLower(env)
}

// Get возвращает значение переменной.
func (c *Config) Get(name string) string {
	return c.values[name]
}

// Require проверяет, что переменные заданы. Ошибка называет первую
// отсутствующую в порядке аргументов.
func (c *Config) Require(names ...string) error {
	for _, name := range names {
		if c.values[name] == "" {
			return &MissingEnvError{Name: name}
		}
	}
	return nil
}

// File возвращает путь прочитанного файла конфигурации.
func (c *Config) File() string {
	return c.file
}

// YAML возвращает конфигурацию в формате файла конфигурации.
// Пустые значения пропускаются.
func (c *Config) YAML() ([]byte, error) {
	out := make(map[string]string, len(c.values))
	for name, val := range c.values {
		if val != "" {
			out[key(name)] = val
		}
	}
	return yaml.Marshal(out)
}

// Names возвращает имена всех переменных конфигурации.
func Names() []string {
	names := make([]string, 0, len(knownVars))
	for name := range knownVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegionDefaulted сообщает, что регион не задан и используется DefaultRegion.
func (c *Config) RegionDefaulted() bool {
	return c.regionDefaulted
}

func (c *Config) Project() string        { return c.values[EnvProject] }
func (c *Config) Region() string         { return c.values[EnvRegion] }
func (c *Config) Bucket() string         { return c.values[EnvBucket] }
func (c *Config) ServiceAccount() string { return c.values[EnvServiceAccount] }
func (c *Config) Runtime() string        { return c.values[EnvRuntime] }

// TemplatePath — путь Flex Template. По умолчанию gs://<bucket>/templates/....
func (c *Config) TemplatePath() string { return c.values[EnvTemplatePath] }
