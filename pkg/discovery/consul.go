// Package discovery registers the service with Consul. Registration is
// optional; deployments without a Consul address skip it entirely.
package discovery

import (
	"fmt"
	"log"
	"strconv"

	"github.com/hashicorp/consul/api"

	"quizblitz-service/internal/config"
)

type ServiceRegistry struct {
	client *api.Client
	cfg    config.Config
}

func NewServiceRegistry(cfg config.Config) (*ServiceRegistry, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Consul.Address

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %v", err)
	}
	return &ServiceRegistry{client: client, cfg: cfg}, nil
}

func (sr *ServiceRegistry) Register() error {
	port, _ := strconv.Atoi(sr.cfg.Port)

	registration := &api.AgentServiceRegistration{
		ID:      sr.cfg.Consul.ServiceID + "-http",
		Name:    sr.cfg.Consul.ServiceName,
		Port:    port,
		Address: sr.cfg.Consul.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.cfg.Consul.ServiceAddress, sr.cfg.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"quiz", "sse", "http"},
		Meta: map[string]string{
			"protocol": "http",
		},
	}

	if err := sr.client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register with Consul: %v", err)
	}
	log.Printf("Registered %s with Consul", sr.cfg.Consul.ServiceName)
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.client.Agent().ServiceDeregister(sr.cfg.Consul.ServiceID + "-http"); err != nil {
		log.Printf("Error deregistering service: %v", err)
		return err
	}
	return nil
}
