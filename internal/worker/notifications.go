package worker

import (
	"fmt"

	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
)

var levelNames = map[evaluation.Level]string{
	evaluation.LevelClass:   "lớp",
	evaluation.LevelAdvisor: "cố vấn học tập",
	evaluation.LevelFaculty: "khoa",
	evaluation.LevelCTSV:    "phòng CTSV",
}

// evaluationNotice is the in-app notification sent to the student for a
// transition of their evaluation.
func evaluationNotice(e evaluation.Event) db.Notification {
	n := db.Notification{
		Recipient:    e.StudentCode,
		EvaluationID: &e.EvaluationID,
		Kind:         "EVALUATION_" + string(e.Action),
	}
	switch e.Action {
	case evaluation.ActionSubmit:
		n.Title = "Đã nộp phiếu đánh giá"
		n.Message = fmt.Sprintf("Phiếu đánh giá học kỳ %s đã được nộp và đang chờ duyệt.", e.Semester)
	case evaluation.ActionApprove:
		n.Title = "Phiếu đánh giá đã được duyệt"
		n.Message = fmt.Sprintf("Phiếu đánh giá học kỳ %s đã được duyệt cấp %s bởi %s.", e.Semester, levelNames[e.Level], e.ActorName)
	case evaluation.ActionReject:
		n.Title = "Phiếu đánh giá bị từ chối"
		n.Message = fmt.Sprintf("Phiếu đánh giá học kỳ %s bị từ chối ở cấp %s. Lý do: %s", e.Semester, levelNames[e.Level], e.Comment)
	case evaluation.ActionResubmit:
		n.Title = "Đã nộp lại phiếu đánh giá"
		n.Message = fmt.Sprintf("Phiếu đánh giá học kỳ %s đã được nộp lại.", e.Semester)
	case evaluation.ActionReopen:
		n.Title = "Phiếu đánh giá được mở lại"
		n.Message = fmt.Sprintf("Phiếu đánh giá học kỳ %s được mở lại để chấm lại. %s", e.Semester, e.Comment)
	default:
		n.Title = "Cập nhật phiếu đánh giá"
		n.Message = fmt.Sprintf("Trạng thái: %s", e.To)
	}
	return n
}

func appealNotice(e appeal.Event) db.Notification {
	n := db.Notification{
		Recipient:    e.StudentCode,
		EvaluationID: &e.EvaluationID,
		AppealID:     &e.AppealID,
		Kind:         "APPEAL_" + string(e.Action),
	}
	switch e.Action {
	case appeal.ActionOpen:
		n.Title = "Đã gửi khiếu nại"
		n.Message = "Khiếu nại của bạn đã được ghi nhận và đang chờ xem xét."
	case appeal.ActionReview:
		n.Title = "Khiếu nại đang được xem xét"
		n.Message = fmt.Sprintf("%s đang xem xét khiếu nại của bạn.", e.ActorName)
	case appeal.ActionAccept:
		n.Title = "Khiếu nại được chấp nhận"
		n.Message = fmt.Sprintf("Phiếu đánh giá đã được mở lại để chấm lại. %s", e.Comment)
	case appeal.ActionReject:
		n.Title = "Khiếu nại bị từ chối"
		n.Message = fmt.Sprintf("Lý do: %s", e.Comment)
	default:
		n.Title = "Cập nhật khiếu nại"
	}
	return n
}
