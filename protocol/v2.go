package protocol

import (
	"fmt"
	"strings"

	"github.com/viant/artifex/internal/yml"
)

// Version 2: checksum map, chunk size and an RSA signature; processor and
// dispatcher identity still repeated on every task.

type envelopeV2 struct {
	Version    int           `yaml:"version"`
	Kind       string        `yaml:"kind"`
	Assignment *assignmentV2 `yaml:"assignment,omitempty"`
	Status     *statusV2     `yaml:"status,omitempty"`
}

type assignmentV2 struct {
	ID    string    `yaml:"id"`
	Tasks []*taskV2 `yaml:"tasks"`
}

type taskV2 struct {
	TaskID        string            `yaml:"taskId"`
	Resource      string            `yaml:"resource"`
	Dir           string            `yaml:"dir,omitempty"`
	DispatcherURL string            `yaml:"dispatcherUrl,omitempty"`
	ProcessorID   string            `yaml:"processorId,omitempty"`
	Nullable      bool              `yaml:"nullable,omitempty"`
	ChunkSize     int               `yaml:"chunkSize,omitempty"`
	Checksums     map[string]string `yaml:"checksums,omitempty"`
	Signature     string            `yaml:"signature,omitempty"`
}

type statusV2 struct {
	ProcessorID string      `yaml:"processorId,omitempty"`
	Reports     []*reportV2 `yaml:"reports"`
}

type reportV2 struct {
	TaskID   string `yaml:"taskId"`
	Resource string `yaml:"resource,omitempty"`
	State    string `yaml:"state"`
	Error    string `yaml:"error,omitempty"`
}

const (
	// legacySignatureAlgorithm is the only signature scheme v2 dispatchers emit
	legacySignatureAlgorithm = "RSA-SHA256"
	// legacyEnvironment hosts v1/v2 resources given without a location scheme
	legacyEnvironment = "default"
)

func decodeV2(node *yml.Node) (interface{}, error) {
	ret := &envelopeV2{}
	if err := node.Decode(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func upgradeV2(value interface{}) (interface{}, error) {
	in, ok := value.(*envelopeV2)
	if !ok {
		return nil, fmt.Errorf("expected %T, got %T", in, value)
	}
	out := &Message{Version: 3, Kind: Kind(in.Kind)}
	if in.Assignment != nil {
		out.Assignment = &Assignment{ID: in.Assignment.ID, Tasks: make([]*TaskAssignment, 0, len(in.Assignment.Tasks))}
		for _, task := range in.Assignment.Tasks {
			if task == nil {
				return nil, fmt.Errorf("empty task")
			}
			if out.Assignment.ProcessorID == "" {
				out.Assignment.ProcessorID = task.ProcessorID
			}
			if out.Assignment.DispatcherURL == "" {
				out.Assignment.DispatcherURL = task.DispatcherURL
			}
			upgraded := &TaskAssignment{
				TaskID:          task.TaskID,
				ResourceKey:     task.Resource,
				Location:        legacyLocation(task.Resource),
				TargetDirectory: task.Dir,
				ChunkSize:       task.ChunkSize,
				Nullable:        task.Nullable,
				Signature:       task.Signature,
			}
			if len(task.Checksums) > 0 {
				upgraded.Checksums = make(map[string]string, len(task.Checksums))
				for k, v := range task.Checksums {
					upgraded.Checksums[strings.ToUpper(k)] = v
				}
			}
			if task.Signature != "" {
				upgraded.SignatureAlgorithm = legacySignatureAlgorithm
			}
			out.Assignment.Tasks = append(out.Assignment.Tasks, upgraded)
		}
	}
	if in.Status != nil {
		out.Status = &StatusReport{ProcessorID: in.Status.ProcessorID, Reports: make([]*TaskStatus, 0, len(in.Status.Reports))}
		for _, report := range in.Status.Reports {
			if report == nil {
				return nil, fmt.Errorf("empty report")
			}
			out.Status.Reports = append(out.Status.Reports, &TaskStatus{
				TaskID:      report.TaskID,
				ResourceKey: report.Resource,
				State:       report.State,
				Message:     report.Error,
			})
		}
	}
	return out, nil
}

func legacyLocation(resource string) string {
	if resource == "" || strings.Contains(resource, "://") {
		return resource
	}
	return "disk://" + legacyEnvironment + "/" + strings.TrimLeft(resource, "/")
}
