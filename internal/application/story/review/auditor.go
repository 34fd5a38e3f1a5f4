// Package review 实现全书一致性审计与章节逻辑修正。
package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"novel-studio-api/internal/application/story/storyutil"
	"novel-studio-api/internal/domain/entity"
	wfmodel "novel-studio-api/internal/workflow/model"
	apperrors "novel-studio-api/pkg/errors"
	"novel-studio-api/pkg/logger"
)

// Severity 问题严重程度
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ParseSeverity 兼容中文描述，无法识别时按 medium 处理
func ParseSeverity(s string) Severity {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "high" || v == "critical" || strings.Contains(v, "高") || strings.Contains(v, "严重"):
		return SeverityHigh
	case v == "low" || v == "minor" || strings.Contains(v, "低") || strings.Contains(v, "轻"):
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Issue 审计发现的问题
type Issue struct {
	Severity    Severity `json:"severity"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion"`
}

// Report 审计报告，不会写回项目
type Report struct {
	Issues       []Issue   `json:"issues"`
	OverallScore int       `json:"overallScore"`
	Summary      string    `json:"summary"`
	Fingerprint  string    `json:"fingerprint"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Cached       bool      `json:"cached"`
}

// ConsistencyChecker 审计调用，由 workflow/chain.Generator 实现
type ConsistencyChecker interface {
	AuditConsistency(ctx context.Context, in *wfmodel.ConsistencyAuditInput) (*wfmodel.AuditReportDraft, error)
}

// ReportCache 审计报告缓存，按内容指纹寻址
type ReportCache interface {
	GetReport(ctx context.Context, key string) ([]byte, bool, error)
	SetReport(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Auditor 一致性审计。只读取项目快照，不占用忙碌锁；
// 相同内容的并发审计合并为一次调用，结果按指纹缓存。
type Auditor struct {
	runner  *storyutil.Runner
	checker ConsistencyChecker
	cache   ReportCache
	ttl     time.Duration
	group   singleflight.Group

	loadTimeout time.Duration
}

// defaultAuditLoadTimeout 合并审计调用的上限，模型调用自身另有 llm.timeout
const defaultAuditLoadTimeout = 5 * time.Minute

// NewAuditor cache 为 nil 时不缓存
func NewAuditor(runner *storyutil.Runner, checker ConsistencyChecker, cache ReportCache, ttl time.Duration) *Auditor {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Auditor{runner: runner, checker: checker, cache: cache, ttl: ttl, loadTimeout: defaultAuditLoadTimeout}
}

// Audit 审计全书设定
func (a *Auditor) Audit(ctx context.Context, projectID string) (*Report, error) {
	return storyutil.RunReadOnly(ctx, a.runner, projectID, "consistency_audit", func(ctx context.Context, snap *entity.Project) (*Report, error) {
		if err := storyutil.RequireText(snap.Architecture.MainPlot, "main plot"); err != nil {
			return nil, err
		}
		if err := storyutil.RequireText(snap.Architecture.PlotStructure, "plot structure"); err != nil {
			return nil, err
		}
		in, err := auditInput(snap)
		if err != nil {
			return nil, err
		}
		fp := Fingerprint(in)
		key := "audit:" + projectID + ":" + fp

		if cached := a.lookup(ctx, key); cached != nil {
			return cached, nil
		}

		// 合并后的调用不随首个调用方取消，各调用方只在自己的 ctx 上等待
		ch := a.group.DoChan(key, func() (any, error) {
			loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.loadTimeout)
			defer cancel()
			draft, err := a.checker.AuditConsistency(loadCtx, in)
			if err != nil {
				return nil, err
			}
			report := buildReport(draft, fp)
			a.store(loadCtx, key, report)
			return report, nil
		})
		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		v, shared := res.Val, res.Shared
		if shared {
			logger.Debug(ctx, "audit result shared with concurrent caller", "fingerprint", fp)
		}
		report := *v.(*Report)
		report.Issues = append([]Issue(nil), report.Issues...)
		return &report, nil
	})
}

func (a *Auditor) lookup(ctx context.Context, key string) *Report {
	if a.cache == nil {
		return nil
	}
	data, ok, err := a.cache.GetReport(ctx, key)
	if err != nil {
		logger.Warn(ctx, "audit cache read failed", "error", err.Error())
		return nil
	}
	if !ok {
		return nil
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		logger.Warn(ctx, "audit cache entry is corrupt", "error", err.Error())
		return nil
	}
	r.Cached = true
	return &r
}

func (a *Auditor) store(ctx context.Context, key string, r *Report) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := a.cache.SetReport(ctx, key, data, a.ttl); err != nil {
		// 缓存写入失败不影响返回结果
		logger.Warn(ctx, "audit cache write failed", "error", err.Error())
	}
}

func auditInput(p *entity.Project) (*wfmodel.ConsistencyAuditInput, error) {
	world, err := json.Marshal(p.Architecture.WorldBible)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	type castRecord struct {
		Name         string `json:"name"`
		Role         string `json:"role"`
		PlotFunction string `json:"plotFunction,omitempty"`
		Traits       string `json:"traits,omitempty"`
		Bio          string `json:"bio,omitempty"`
	}
	cast := make([]castRecord, 0, len(p.Characters))
	for _, c := range p.Characters {
		cast = append(cast, castRecord{Name: c.Name, Role: c.Role, PlotFunction: c.PlotFunction, Traits: c.Traits, Bio: c.Bio})
	}
	chars, err := json.Marshal(cast)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	quests := p.Architecture.SideQuests
	if quests == nil {
		quests = []entity.SideQuest{}
	}
	sq, err := json.Marshal(quests)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}
	return &wfmodel.ConsistencyAuditInput{
		WorldBibleJSON: string(world),
		CharactersJSON: string(chars),
		MainPlot:       p.Architecture.MainPlot,
		PlotStructure:  p.Architecture.PlotStructure,
		SideQuestsJSON: string(sq),
	}, nil
}

// Fingerprint 审计输入的内容指纹，设定不变时指纹不变
func Fingerprint(in *wfmodel.ConsistencyAuditInput) string {
	h := sha256.New()
	for _, part := range []string{in.WorldBibleJSON, in.CharactersJSON, in.MainPlot, in.PlotStructure, in.SideQuestsJSON} {
		fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func buildReport(d *wfmodel.AuditReportDraft, fp string) *Report {
	r := &Report{
		Issues:       make([]Issue, 0, len(d.Issues)),
		OverallScore: entity.ClampProgress(d.OverallScore),
		Summary:      strings.TrimSpace(d.Summary),
		Fingerprint:  fp,
		GeneratedAt:  time.Now(),
	}
	for _, it := range d.Issues {
		r.Issues = append(r.Issues, Issue{
			Severity:    ParseSeverity(it.Severity),
			Location:    it.Location,
			Description: it.Description,
			Suggestion:  it.Suggestion,
		})
	}
	return r
}
