package deploy

import (
	"fmt"
	"strings"
)

// Имена ресурсов GCP.
const (
	FunctionStage   = "stage_chunk"
	FunctionTrack   = "track_chunk"
	FunctionPromote = "promote_chunks"

	TopicStage = "stage-chunk-topic"
	TopicTrack = "track-chunk-topic"

	SchedulerJob      = "promote-chunks-daily"
	SchedulerCron     = "0 12 * * *"
	SchedulerTimezone = "America/Santiago"

	DockerRepo     = "ppdb-docker-repo"
	ImageName      = "stage-chunk-image"
	TemplateObject = "templates/stage_chunk_flex_template.json"

	// DBPasswordSecret — секрет Secret Manager с паролем PPDB.
	DBPasswordSecret = "ppdb-db-password"

	stagerDockerfile   = "build/stage-chunk/Dockerfile"
	templateMetadata   = "build/stage-chunk/metadata.json"
	functionSourceRoot = "."
)

// Точки входа функций в корневом пакете модуля.
const (
	entryStage   = "StageChunk"
	entryTrack   = "TrackChunk"
	entryPromote = "PromoteChunks"
)

// ImageURI — образ staging-задачи в Artifact Registry.
func (c *Config) ImageURI() string {
	return fmt.Sprintf("%s-docker.pkg.dev/%s/%s/%s:latest", c.Region(), c.Project(), DockerRepo, ImageName)
}

// FunctionURL — HTTPS-адрес функции.
func (c *Config) FunctionURL(name string) string {
	return fmt.Sprintf("https://%s-%s.cloudfunctions.net/%s", c.Region(), c.Project(), name)
}

// Resource — развёртываемый ресурс.
type Resource struct {
	// Name — имя в CLI: ppdbctl deploy <name>.
	Name string

	// Requires — переменные, без которых не строится план развёртывания.
	Requires []string

	// TeardownRequires — то же для плана удаления.
	TeardownRequires []string

	deploy   func(*Config) []Command
	teardown func(*Config) []Command
}

// DeployPlan строит план развёртывания.
func (r Resource) DeployPlan(cfg *Config) (Plan, error) {
	if err := cfg.Require(r.Requires...); err != nil {
		return Plan{}, err
	}
	return newPlan(cfg, r.Name, ActionDeploy, r.deploy(cfg)), nil
}

// TeardownPlan строит план удаления.
func (r Resource) TeardownPlan(cfg *Config) (Plan, error) {
	if err := cfg.Require(r.TeardownRequires...); err != nil {
		return Plan{}, err
	}
	return newPlan(cfg, r.Name, ActionTeardown, r.teardown(cfg)), nil
}

func newPlan(cfg *Config, resource, action string, cmds []Command) Plan {
	return Plan{
		Resource:        resource,
		Action:          action,
		Commands:        cmds,
		Region:          cfg.Region(),
		RegionDefaulted: cfg.RegionDefaulted(),
	}
}

// Ресурсы в порядке развёртывания. Teardown all идёт в обратном порядке.
var resources = []Resource{
	{
		Name:             "topics",
		Requires:         []string{EnvProject},
		TeardownRequires: []string{EnvProject},
		deploy: func(c *Config) []Command {
			return []Command{
				gcloud("pubsub", "topics", "create", TopicStage, "--project="+c.Project()),
				gcloud("pubsub", "topics", "create", TopicTrack, "--project="+c.Project()),
			}
		},
		teardown: func(c *Config) []Command {
			return []Command{
				gcloud("pubsub", "topics", "delete", TopicStage, "--project="+c.Project(), "--quiet"),
				gcloud("pubsub", "topics", "delete", TopicTrack, "--project="+c.Project(), "--quiet"),
			}
		},
	},
	{
		Name:             "image",
		Requires:         []string{EnvProject, EnvCredentials},
		TeardownRequires: []string{EnvProject, EnvRegion},
		deploy: func(c *Config) []Command {
			return []Command{
				gcloud("auth", "activate-service-account", "--key-file="+c.Get(EnvCredentials)),
				gcloud("auth", "configure-docker", c.Region()+"-docker.pkg.dev", "--quiet"),
				docker("build", "-f", stagerDockerfile, "-t", c.ImageURI(), "."),
				docker("push", c.ImageURI()),
			}
		},
		teardown: func(c *Config) []Command {
			return []Command{
				gcloud("artifacts", "docker", "images", "delete", c.ImageURI(),
					"--delete-tags", "--quiet"),
			}
		},
	},
	{
		Name:             "template",
		Requires:         []string{EnvProject, EnvTemplatePath},
		TeardownRequires: []string{EnvTemplatePath},
		deploy: func(c *Config) []Command {
			return []Command{
				gcloud("dataflow", "flex-template", "build", c.TemplatePath(),
					"--image", c.ImageURI(),
					"--sdk-language", "GO",
					"--metadata-file", templateMetadata,
					"--project="+c.Project(),
				),
			}
		},
		teardown: func(c *Config) []Command {
			return []Command{gsutil("rm", c.TemplatePath())}
		},
	},
	{
		Name: "stage",
		Requires: []string{
			EnvProject, EnvServiceAccount, EnvTemplatePath, EnvTempLocation,
		},
		TeardownRequires: []string{EnvProject, EnvRegion},
		deploy: func(c *Config) []Command {
			return []Command{
				deployFunction(c, FunctionStage, entryStage,
					"--trigger-topic="+TopicStage,
					"--set-env-vars="+envList(
						"PROJECT_ID", c.Project(),
						"DATAFLOW_TEMPLATE_PATH", c.TemplatePath(),
						"REGION", c.Region(),
						"SERVICE_ACCOUNT_EMAIL", c.ServiceAccount(),
						"TEMP_LOCATION", c.Get(EnvTempLocation),
						"TRACK_TOPIC", TopicTrack,
					),
				),
			}
		},
		teardown: func(c *Config) []Command {
			return []Command{deleteFunction(c, FunctionStage)}
		},
	},
	{
		Name: "track",
		Requires: []string{
			EnvProject, EnvServiceAccount, EnvDBHost, EnvDBUser, EnvDBName, EnvSchema,
		},
		TeardownRequires: []string{EnvProject, EnvRegion},
		deploy: func(c *Config) []Command {
			return []Command{
				deployFunction(c, FunctionTrack, entryTrack,
					"--trigger-topic="+TopicTrack,
					"--set-env-vars="+dbEnv(c),
					"--set-secrets=PPDB_DB_PASSWORD="+DBPasswordSecret+":latest",
				),
			}
		},
		teardown: func(c *Config) []Command {
			return []Command{deleteFunction(c, FunctionTrack)}
		},
	},
	{
		Name: "promote",
		Requires: []string{
			EnvProject, EnvServiceAccount, EnvDataset, EnvDBHost, EnvDBUser, EnvDBName, EnvSchema,
		},
		TeardownRequires: []string{EnvProject, EnvRegion},
		deploy: func(c *Config) []Command {
			url := c.FunctionURL(FunctionPromote)
			return []Command{
				deployFunction(c, FunctionPromote, entryPromote,
					"--trigger-http",
					"--no-allow-unauthenticated",
					"--set-env-vars="+dbEnv(c)+",DATASET_ID="+c.Get(EnvDataset),
					"--set-secrets=PPDB_DB_PASSWORD="+DBPasswordSecret+":latest",
				),
				gcloud("scheduler", "jobs", "create", "http", SchedulerJob,
					"--location="+c.Region(),
					"--schedule="+SchedulerCron,
					"--time-zone="+SchedulerTimezone,
					"--uri="+url,
					"--http-method=POST",
					"--oidc-service-account-email="+c.ServiceAccount(),
					"--oidc-token-audience="+url,
					"--project="+c.Project(),
				),
			}
		},
		teardown: func(c *Config) []Command {
			return []Command{
				gcloud("scheduler", "jobs", "delete", SchedulerJob,
					"--location="+c.Region(),
					"--project="+c.Project(),
					"--quiet",
				),
				deleteFunction(c, FunctionPromote),
			}
		},
	},
}

// Resources возвращает описания всех ресурсов в порядке развёртывания.
func Resources() []Resource {
	return append([]Resource(nil), resources...)
}

// Lookup находит ресурс по имени.
func Lookup(name string) (Resource, error) {
	for _, r := range resources {
		if r.Name == name {
			return r, nil
		}
	}
	return Resource{}, fmt.Errorf("%w: %q (expected one of: %s, all)", ErrUnknownResource, name, resourceNames())
}

// DeployPlans строит планы развёртывания для name ("all" — все ресурсы).
// Планы строятся до запуска первой команды, поэтому ошибка конфигурации
// не оставляет частично развёрнутую систему.
func DeployPlans(cfg *Config, name string) ([]Plan, error) {
	rs, err := selectResources(name, false)
	if err != nil {
		return nil, err
	}
	plans := make([]Plan, 0, len(rs))
	for _, r := range rs {
		p, err := r.DeployPlan(cfg)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// TeardownPlans строит планы удаления для name ("all" — в обратном порядке).
func TeardownPlans(cfg *Config, name string) ([]Plan, error) {
	rs, err := selectResources(name, true)
	if err != nil {
		return nil, err
	}
	plans := make([]Plan, 0, len(rs))
	for _, r := range rs {
		p, err := r.TeardownPlan(cfg)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func selectResources(name string, reverse bool) ([]Resource, error) {
	if name != "all" {
		r, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		return []Resource{r}, nil
	}

	rs := Resources()
	if reverse {
		for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
			rs[i], rs[j] = rs[j], rs[i]
		}
	}
	return rs, nil
}

// --- Command builders ---

func gcloud(args ...string) Command { return Command{Name: "gcloud", Args: args} }
func gsutil(args ...string) Command { return Command{Name: "gsutil", Args: args} }
func docker(args ...string) Command { return Command{Name: "docker", Args: args} }

// deployFunction — gcloud functions deploy с общими для всех функций флагами.
// Функции 2nd gen, точки входа зарегистрированы в functions-framework.
func deployFunction(c *Config, name, entry string, extra ...string) Command {
	args := []string{
		"functions", "deploy", name,
		"--gen2",
		"--runtime=" + c.Runtime(),
		"--region=" + c.Region(),
		"--source=" + functionSourceRoot,
		"--entry-point=" + entry,
		"--service-account=" + c.ServiceAccount(),
	}
	args = append(args, extra...)
	args = append(args, "--project="+c.Project())
	return gcloud(args...)
}

// deleteFunction удаляет функцию в том же регионе, где её создаёт deployFunction.
func deleteFunction(c *Config, name string) Command {
	return gcloud("functions", "delete", name,
		"--region="+c.Region(),
		"--project="+c.Project(),
		"--quiet",
	)
}

func dbEnv(c *Config) string {
	return envList(
		EnvDBHost, c.Get(EnvDBHost),
		EnvDBUser, c.Get(EnvDBUser),
		EnvDBName, c.Get(EnvDBName),
		EnvSchema, c.Get(EnvSchema),
	)
}

// envList собирает KEY=VALUE,... для --set-env-vars.
func envList(kv ...string) string {
	pairs := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, kv[i]+"="+kv[i+1])
	}
	return strings.Join(pairs, ",")
}
