package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExportFile 导出结果，Archive 时 URL 为存储地址
type ExportFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url,omitempty"`
	Data        []byte `json:"-"`
}

type ExportService struct {
	ResultRepo    *repository.ResultRepository
	ExamRepo      *repository.ExamRepository
	CandidateRepo *repository.CandidateRepository
	QuestionRepo  *repository.QuestionRepository
	Access        *AccessService
	Storage       *StorageService
}

func NewExportService(resultRepo *repository.ResultRepository, examRepo *repository.ExamRepository, candidateRepo *repository.CandidateRepository, questionRepo *repository.QuestionRepository, access *AccessService, storage *StorageService) *ExportService {
	return &ExportService{
		ResultRepo:    resultRepo,
		ExamRepo:      examRepo,
		CandidateRepo: candidateRepo,
		QuestionRepo:  questionRepo,
		Access:        access,
		Storage:       storage,
	}
}

type exportSource struct {
	result    *model.Result
	exam      *model.Exam
	candidate *model.Candidate
	options   map[uint]string
}

// Export 按格式渲染结果；archive 为 true 时上传到存储并返回地址
func (s *ExportService) Export(ctx context.Context, userID, resultID uint, format string, archive bool) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = util.ExportCSV
	}
	switch format {
	case util.ExportCSV, util.ExportJSON:
	case util.ExportPDF, util.ExportXLSX:
		return nil, fmt.Errorf("%w: %s export is not supported yet", util.ErrNotImplemented, format)
	default:
		return nil, util.Validationf("unsupported export format %q", format)
	}

	src, err := s.load(ctx, userID, resultID)
	if err != nil {
		return nil, err
	}

	file := &ExportFile{
		Filename: exportFilename(src.result.ID, format),
	}
	switch format {
	case util.ExportCSV:
		file.ContentType = util.MimeCSV
		file.Data, err = renderCSV(src)
	case util.ExportJSON:
		file.ContentType = util.MimeJSON
		file.Data, err = renderJSON(src)
	}
	if err != nil {
		return nil, err
	}

	if archive {
		if err := s.Storage.ArchiveExport(ctx, src.result.ID, file); err != nil {
			return nil, fmt.Errorf("archive export: %w", err)
		}
		file.URL = archivedExportURL(src.result.ID, file.Filename)
		logger.Log.Info("Result export archived",
			zap.Uint("result_id", src.result.ID),
			zap.String("format", format),
			zap.String("file", file.Filename))
	}
	return file, nil
}

// Archived 读取已归档的导出文件，与导出本身一样只对考试创建者可见
func (s *ExportService) Archived(ctx context.Context, userID, resultID uint, filename string) (*ExportFile, error) {
	if _, err := s.Access.Result(ctx, nil, userID, resultID); err != nil {
		return nil, err
	}

	contentType, ok := archivedContentType(filename)
	if !ok {
		return nil, util.NotFoundf("export")
	}
	data, err := s.Storage.LoadExport(ctx, resultID, filename)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, util.NotFoundf("export")
	}
	if err != nil {
		return nil, err
	}
	return &ExportFile{Filename: filename, ContentType: contentType, Data: data}, nil
}

// exportFilename 带随机后缀，归档后无法按结果 ID 猜出文件名
func exportFilename(resultID uint, format string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("result_%d_%s_%s.%s", resultID, time.Now().Format("20060102150405"), suffix, format)
}

func archivedExportURL(resultID uint, filename string) string {
	return fmt.Sprintf("/api/results/%d/exports/%s", resultID, filename)
}

// archivedContentType 只接受本服务生成的文件名
func archivedContentType(filename string) (string, bool) {
	if filename == "" || filename != path.Base(filename) || !strings.HasPrefix(filename, "result_") {
		return "", false
	}
	switch path.Ext(filename) {
	case "." + util.ExportCSV:
		return util.MimeCSV, true
	case "." + util.ExportJSON:
		return util.MimeJSON, true
	}
	return "", false
}

func (s *ExportService) load(ctx context.Context, userID, resultID uint) (*exportSource, error) {
	result, err := s.Access.Result(ctx, nil, userID, resultID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindByID(ctx, result.ExamID)
	if err != nil {
		return nil, notFound(err, "exam")
	}
	candidate, err := s.CandidateRepo.FindByID(ctx, result.CandidateID)
	if err != nil {
		return nil, notFound(err, "candidate")
	}

	var ids []uint
	for _, a := range result.Answers {
		if a.SelectedOptionID != nil {
			ids = append(ids, *a.SelectedOptionID)
		}
		ids = append(ids, a.SelectedOptionIDs...)
	}
	options, err := s.QuestionRepo.FindOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	texts := make(map[uint]string, len(options))
	for _, o := range options {
		texts[o.ID] = o.Text
	}

	return &exportSource{result: result, exam: exam, candidate: candidate, options: texts}, nil
}

func (src *exportSource) optionText(id uint) string {
	if text, ok := src.options[id]; ok {
		return text
	}
	// 选项在提交后被修改或删除
	return fmt.Sprintf("Option #%d", id)
}

func (src *exportSource) answerText(a *model.Answer) string {
	switch {
	case a.TextResponse != nil && *a.TextResponse != "":
		return *a.TextResponse
	case a.SelectedOptionID != nil:
		return src.optionText(*a.SelectedOptionID)
	case len(a.SelectedOptionIDs) > 0:
		parts := make([]string, 0, len(a.SelectedOptionIDs))
		for _, id := range a.SelectedOptionIDs {
			parts = append(parts, src.optionText(id))
		}
		return strings.Join(parts, "; ")
	default:
		return "No answer"
	}
}

func correctLabel(a *model.Answer) string {
	if a.IsCorrect == nil {
		return "N/A"
	}
	if *a.IsCorrect {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(util.TimeFormat)
}

func renderCSV(src *exportSource) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"Exam Result"},
		{},
		{"Exam Title", src.exam.Title},
		{"Candidate Name", src.candidate.Name},
		{"Candidate Email", src.candidate.Email},
		{"Date Completed", formatTime(src.candidate.TestEndTime)},
		{"Score", formatPercent(src.result.Score)},
		{"Status", passStatus(src.result.Passed)},
		{},
		{"Question", "Answer", "Correct", "Points Earned", "Points Possible"},
	}
	for i := range src.result.Answers {
		a := &src.result.Answers[i]
		rows = append(rows, []string{
			a.QuestionText,
			src.answerText(a),
			correctLabel(a),
			fmt.Sprintf("%.2f", a.EarnedPoints),
			fmt.Sprintf("%.2f", a.PointsPossible),
		})
	}
	if src.result.Feedback != nil && *src.result.Feedback != "" {
		rows = append(rows, []string{}, []string{"Feedback"}, []string{*src.result.Feedback})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type exportDocument struct {
	Exam      exportExam      `json:"exam"`
	Candidate exportCandidate `json:"candidate"`
	Result    exportResult    `json:"result"`
	Answers   []exportAnswer  `json:"answers"`
}

type exportExam struct {
	ID           uint    `json:"id"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	PassingScore float64 `json:"passing_score"`
}

type exportCandidate struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	TestStartTime *time.Time `json:"test_start_time"`
	TestEndTime   *time.Time `json:"test_end_time"`
}

type exportResult struct {
	ID           uint      `json:"id"`
	Score        float64   `json:"score"`
	Passed       bool      `json:"passed"`
	PassingScore float64   `json:"passing_score"`
	TotalPoints  float64   `json:"total_points"`
	EarnedPoints float64   `json:"earned_points"`
	Feedback     *string   `json:"feedback"`
	CreatedAt    time.Time `json:"created_at"`
}

type exportQuestion struct {
	ID           uint    `json:"id"`
	Text         string  `json:"text"`
	QuestionType string  `json:"question_type"`
	Points       float64 `json:"points"`
}

type exportOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type exportAnswerBody struct {
	ID                uint           `json:"id"`
	IsCorrect         *bool          `json:"is_correct"`
	EarnedPoints      float64        `json:"earned_points"`
	ManuallyEvaluated bool           `json:"manually_evaluated"`
	SelectedOptions   []exportOption `json:"selected_options,omitempty"`
	TextResponse      *string        `json:"text_response,omitempty"`
}

type exportAnswer struct {
	Question exportQuestion   `json:"question"`
	Answer   exportAnswerBody `json:"answer"`
}

func renderJSON(src *exportSource) ([]byte, error) {
	doc := exportDocument{
		Exam: exportExam{
			ID:           src.exam.ID,
			Title:        src.exam.Title,
			Description:  src.exam.Description,
			PassingScore: src.exam.PassingScore,
		},
		Candidate: exportCandidate{
			ID:            src.candidate.ID,
			Name:          src.candidate.Name,
			Email:         src.candidate.Email,
			TestStartTime: src.candidate.TestStartTime,
			TestEndTime:   src.candidate.TestEndTime,
		},
		Result: exportResult{
			ID:           src.result.ID,
			Score:        src.result.Score,
			Passed:       src.result.Passed,
			PassingScore: src.result.PassingScore,
			TotalPoints:  src.result.TotalPoints,
			EarnedPoints: src.result.EarnedPoints,
			Feedback:     src.result.Feedback,
			CreatedAt:    src.result.CreatedAt,
		},
		Answers: make([]exportAnswer, 0, len(src.result.Answers)),
	}

	for i := range src.result.Answers {
		a := &src.result.Answers[i]
		body := exportAnswerBody{
			ID:                a.ID,
			IsCorrect:         a.IsCorrect,
			EarnedPoints:      a.EarnedPoints,
			ManuallyEvaluated: a.ManuallyEvaluated,
		}
		if model.IsFreeText(a.QuestionType) {
			body.TextResponse = a.TextResponse
		} else {
			ids := append([]uint(nil), a.SelectedOptionIDs...)
			if a.SelectedOptionID != nil {
				ids = append(ids, *a.SelectedOptionID)
			}
			for _, id := range ids {
				body.SelectedOptions = append(body.SelectedOptions, exportOption{ID: id, Text: src.optionText(id)})
			}
		}
		doc.Answers = append(doc.Answers, exportAnswer{
			Question: exportQuestion{
				ID:           a.QuestionID,
				Text:         a.QuestionText,
				QuestionType: a.QuestionType,
				Points:       a.PointsPossible,
			},
			Answer: body,
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}
