// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

package sync

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/tributary/internal/config"
	"github.com/tomtom215/tributary/internal/database"
	"github.com/tomtom215/tributary/internal/models"
)

const asanaPageSize = 100

const (
	asanaProjectFields = "name,archived,color,created_at,modified_at,due_on,owner,owner.name,workspace"
	asanaTaskFields    = "name,completed,completed_at,due_on,created_at,modified_at,assignee,assignee.name," +
		"projects,projects.name,tags,tags.name,followers,num_subtasks,num_likes"
	asanaUserFields = "name,email"
)

// ProjectTrackerConnector reads Asana projects, tasks and users.
type ProjectTrackerConnector struct {
	client       *apiClient
	workspaceGID string
}

// NewProjectTrackerConnector returns ErrNotConfigured without an access
// token.
func NewProjectTrackerConnector(cfg config.ProjectTrackerConfig, s ClientSettings) (*ProjectTrackerConnector, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	client := newAPIClient(s.clientOptions(models.SourceProjectTracker, cfg.BaseURL, bearerAuth(cfg.AccessToken)))
	return &ProjectTrackerConnector{client: client, workspaceGID: cfg.WorkspaceGID}, nil
}

func (c *ProjectTrackerConnector) Kind() models.SourceKind { return models.SourceProjectTracker }

// TestConnection fetches the token's user.
func (c *ProjectTrackerConnector) TestConnection(ctx context.Context) error {
	return c.client.getJSON(ctx, "/api/1.0/users/me", nil, nil)
}

type asanaRef struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

type asanaPage[T any] struct {
	Data     []T `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
}

// asanaList walks offset pagination, handing each page to fn.
func asanaList[T any](ctx context.Context, c *ProjectTrackerConnector, path string, q url.Values, fn func([]T) error) error {
	offset := ""
	for {
		page := url.Values{}
		for k, v := range q {
			page[k] = v
		}
		page.Set("limit", strconv.Itoa(asanaPageSize))
		if offset != "" {
			page.Set("offset", offset)
		}

		var resp asanaPage[T]
		if err := c.client.getJSON(ctx, "/api/1.0"+path, page, &resp); err != nil {
			return err
		}
		if err := fn(resp.Data); err != nil {
			return err
		}
		if resp.NextPage == nil || resp.NextPage.Offset == "" {
			return nil
		}
		offset = resp.NextPage.Offset
	}
}

// Fetch syncs the enabled resources across the configured workspace, or
// every workspace the token can see. Incremental task syncs only pull tasks
// modified since the window start.
func (c *ProjectTrackerConnector) Fetch(ctx context.Context, req FetchRequest[ProjectTrackerOptions], yield func(Page) error) error {
	workspaces, err := c.workspaces(ctx)
	if err != nil {
		return fmt.Errorf("workspaces: %w", err)
	}

	var modifiedSince string
	if !req.FullSync {
		modifiedSince = req.Window.Start.Format(time.RFC3339)
	}

	for _, ws := range workspaces {
		if req.Options.SyncProjects || req.Options.SyncTasks {
			projects, err := c.fetchProjects(ctx, ws, req.Options.SyncProjects, yield)
			if err != nil {
				return fmt.Errorf("projects: %w", err)
			}
			if req.Options.SyncTasks {
				for _, p := range projects {
					if err := c.fetchTasks(ctx, p, modifiedSince, yield); err != nil {
						return fmt.Errorf("tasks of project %s: %w", p.GID, err)
					}
				}
			}
		}
		if req.Options.SyncUsers {
			if err := c.fetchUsers(ctx, ws, yield); err != nil {
				return fmt.Errorf("users: %w", err)
			}
		}
	}
	return nil
}

func (c *ProjectTrackerConnector) workspaces(ctx context.Context) ([]string, error) {
	if c.workspaceGID != "" {
		return []string{c.workspaceGID}, nil
	}
	var gids []string
	err := asanaList(ctx, c, "/workspaces", nil, func(page []asanaRef) error {
		for _, ws := range page {
			gids = append(gids, ws.GID)
		}
		return nil
	})
	return gids, err
}

type asanaProject struct {
	GID        string    `json:"gid"`
	Name       string    `json:"name"`
	Archived   bool      `json:"archived"`
	Color      string    `json:"color"`
	CreatedAt  string    `json:"created_at"`
	ModifiedAt string    `json:"modified_at"`
	DueOn      string    `json:"due_on"`
	Owner      *asanaRef `json:"owner"`
}

func (c *ProjectTrackerConnector) fetchProjects(ctx context.Context, workspace string, store bool, yield func(Page) error) ([]asanaRef, error) {
	var refs []asanaRef
	q := url.Values{"workspace": {workspace}, "archived": {"false"}, "opt_fields": {asanaProjectFields}}
	err := asanaList(ctx, c, "/projects", q, func(page []asanaProject) error {
		records := make([]models.SourceRecord, 0, len(page))
		for _, p := range page {
			refs = append(refs, asanaRef{GID: p.GID, Name: p.Name})
			r := models.NewSourceRecord(models.SourceProjectTracker, p.GID, time.Time{}).
				WithDimension("name", p.Name).
				WithDimension("workspace_gid", workspace).
				WithDimension("color", p.Color).
				WithDimension("created_at", p.CreatedAt).
				WithDimension("modified_at", p.ModifiedAt).
				WithDimension("due_on", p.DueOn).
				WithMetric("archived", boolMetric(p.Archived))
			if p.Owner != nil {
				r = r.WithDimension("owner_gid", p.Owner.GID).WithDimension("owner_name", p.Owner.Name)
			}
			records = append(records, r)
		}
		if !store {
			return nil
		}
		return emit(yield, database.TableAsanaProjects, records)
	})
	return refs, err
}

type asanaTask struct {
	GID         string     `json:"gid"`
	Name        string     `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt string     `json:"completed_at"`
	DueOn       string     `json:"due_on"`
	CreatedAt   string     `json:"created_at"`
	ModifiedAt  string     `json:"modified_at"`
	Assignee    *asanaRef  `json:"assignee"`
	Tags        []asanaRef `json:"tags"`
	Followers   []asanaRef `json:"followers"`
	NumSubtasks int        `json:"num_subtasks"`
	NumLikes    int        `json:"num_likes"`
}

func (c *ProjectTrackerConnector) fetchTasks(ctx context.Context, project asanaRef, modifiedSince string, yield func(Page) error) error {
	q := url.Values{"project": {project.GID}, "opt_fields": {asanaTaskFields}}
	if modifiedSince != "" {
		q.Set("modified_since", modifiedSince)
	}
	return asanaList(ctx, c, "/tasks", q, func(page []asanaTask) error {
		records := make([]models.SourceRecord, 0, len(page))
		for _, t := range page {
			tags := make([]string, 0, len(t.Tags))
			for _, tag := range t.Tags {
				tags = append(tags, tag.Name)
			}
			r := models.NewSourceRecord(models.SourceProjectTracker, t.GID, time.Time{}).
				WithDimension("name", t.Name).
				WithDimension("project_gid", project.GID).
				WithDimension("project_name", project.Name).
				WithDimension("created_at", t.CreatedAt).
				WithDimension("modified_at", t.ModifiedAt).
				WithDimension("completed_at", t.CompletedAt).
				WithDimension("due_on", t.DueOn).
				WithDimension("tags", strings.Join(tags, ",")).
				WithMetric("completed", boolMetric(t.Completed)).
				WithMetric("num_subtasks", float64(t.NumSubtasks)).
				WithMetric("num_likes", float64(t.NumLikes)).
				WithMetric("followers_count", float64(len(t.Followers)))
			if t.Assignee != nil {
				r = r.WithDimension("assignee_gid", t.Assignee.GID).WithDimension("assignee_name", t.Assignee.Name)
			}
			records = append(records, r)
		}
		return emit(yield, database.TableAsanaTasks, records)
	})
}

type asanaUser struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *ProjectTrackerConnector) fetchUsers(ctx context.Context, workspace string, yield func(Page) error) error {
	q := url.Values{"workspace": {workspace}, "opt_fields": {asanaUserFields}}
	return asanaList(ctx, c, "/users", q, func(page []asanaUser) error {
		records := make([]models.SourceRecord, 0, len(page))
		for _, u := range page {
			records = append(records, models.NewSourceRecord(models.SourceProjectTracker, u.GID, time.Time{}).
				WithDimension("name", u.Name).
				WithDimension("email", u.Email).
				WithDimension("workspace_gid", workspace))
		}
		return emit(yield, database.TableAsanaUsers, records)
	})
}
