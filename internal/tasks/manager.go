// Package tasks mirrors routed claims onto a Notion task board. Board
// writes are best effort: a board outage must never fail or delay claim
// processing, so callers log errors and move on.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
	"github.com/harborview/claims-triage/internal/model"
	"github.com/harborview/claims-triage/pkg/notion"
)

// Manager creates and updates task board pages for claims.
type Manager struct {
	client  notion.Client
	boardDB string
}

// New creates a Manager over an existing Notion client.
func New(client notion.Client, boardDB string) *Manager {
	return &Manager{client: client, boardDB: boardDB}
}

// NewFromConfig creates a Manager with a token-backed client. Returns
// (nil, nil) when no token is configured: the board integration is
// optional and a nil Manager disables it.
func NewFromConfig(cfg config.TasksConfig) (*Manager, error) {
	if cfg.NotionToken == "" {
		return nil, nil
	}
	if cfg.BoardDB == "" {
		return nil, eris.New("tasks: board_db is required when notion_token is set")
	}
	return New(notion.NewClient(cfg.NotionToken), cfg.BoardDB), nil
}

// TaskRequest carries the claim fields surfaced on the board card.
type TaskRequest struct {
	ClaimID      string
	AdjusterID   string
	AdjusterName string
	ClaimAmount  *float64
	IncidentType model.IncidentType
	Priority     model.Priority
	AutoApproved bool
}

// CreateClaimTask creates a board page for a routed claim and returns
// the page ID.
func (m *Manager) CreateClaimTask(ctx context.Context, req TaskRequest) (string, error) {
	page, err := m.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(m.boardDB),
		},
		Properties: buildTaskProperties(req),
		Children:   buildTaskChecklist(req),
	})
	if err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("tasks: create task for claim %s", req.ClaimID))
	}

	zap.L().Info("task created",
		zap.String("claim_id", req.ClaimID),
		zap.String("task_id", string(page.ID)),
		zap.String("adjuster_id", req.AdjusterID))
	return string(page.ID), nil
}

// boardColumns maps claim statuses to board status options. Statuses
// with no board meaning keep the card in To Do.
var boardColumns = map[model.ClaimStatus]string{
	model.StatusInProgress: "In Progress",
	model.StatusReview:     "Review",
	model.StatusCompleted:  "Done",
	model.StatusClosed:     "Done",
	model.StatusRejected:   "Done",
}

// UpdateTaskStatus moves a claim's board card to the column matching
// the new claim status.
func (m *Manager) UpdateTaskStatus(ctx context.Context, taskID string, status model.ClaimStatus) error {
	column, ok := boardColumns[status]
	if !ok {
		column = "To Do"
	}

	_, err := m.client.UpdatePage(ctx, taskID, &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.SelectProperty{
				Type:   notionapi.PropertyTypeSelect,
				Select: notionapi.Option{Name: column},
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("tasks: update task %s", taskID))
	}
	return nil
}

func buildTaskProperties(req TaskRequest) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Type: notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: "Process Claim: " + req.ClaimID}},
			},
		},
		"Status": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: "To Do"},
		},
		"Priority": notionapi.SelectProperty{
			Type:   notionapi.PropertyTypeSelect,
			Select: notionapi.Option{Name: strings.ToUpper(string(req.Priority))},
		},
		"Claim ID": notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: req.ClaimID}},
			},
		},
	}
	if req.AdjusterName != "" {
		props["Adjuster"] = notionapi.RichTextProperty{
			Type: notionapi.PropertyTypeRichText,
			RichText: []notionapi.RichText{
				{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{
					Content: fmt.Sprintf("%s (%s)", req.AdjusterName, req.AdjusterID),
				}},
			},
		}
	}
	return props
}

// autoApprovedChecklist verifies an automated approval; the standard
// checklist walks the full adjuster workflow.
var (
	autoApprovedChecklist = []string{
		"Verify claim details",
		"Review auto-approval decision",
		"Confirm payout amount",
		"Move to review for final check",
	}
	standardChecklist = []string{
		"Review claim documentation",
		"Assess damage and liability",
		"Determine payout amount",
		"Contact claimant if needed",
		"Move to review for approval",
	}
)

func buildTaskChecklist(req TaskRequest) []notionapi.Block {
	var summary strings.Builder
	fmt.Fprintf(&summary, "Assigned to: %s (%s). Priority: %s.",
		req.AdjusterName, req.AdjusterID, strings.ToUpper(string(req.Priority)))
	if req.ClaimAmount != nil {
		fmt.Fprintf(&summary, " Amount: $%.2f.", *req.ClaimAmount)
	}
	if req.IncidentType != "" {
		fmt.Fprintf(&summary, " Type: %s.", req.IncidentType)
	}
	if req.AutoApproved {
		summary.WriteString(" Auto-approved, requires verification.")
	}

	blocks := []notionapi.Block{
		&notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeParagraph,
			},
			Paragraph: notionapi.Paragraph{
				RichText: []notionapi.RichText{
					{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: summary.String()}},
				},
			},
		},
	}

	items := standardChecklist
	if req.AutoApproved {
		items = autoApprovedChecklist
	}
	for _, item := range items {
		blocks = append(blocks, &notionapi.ToDoBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeToDo,
			},
			ToDo: notionapi.ToDo{
				RichText: []notionapi.RichText{
					{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: item}},
				},
			},
		})
	}
	return blocks
}
