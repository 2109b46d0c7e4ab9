package wire

// ServiceName は gRPC サービスの完全修飾名です。
const ServiceName = "worktime.v1.TimeTrackingService"

// TimeTrackingService のメソッド名です。
const (
	MethodStartWork         = "StartWork"
	MethodStopWork          = "StopWork"
	MethodStartBreak        = "StartBreak"
	MethodStopBreak         = "StopBreak"
	MethodGetRunning        = "GetRunning"
	MethodRecordIdleTick    = "RecordIdleTick"
	MethodUpdateIdleReason  = "UpdateIdleReason"
	MethodReviewIdleSession = "ReviewIdleSession"
	MethodGetSession        = "GetSession"
	MethodListSessions      = "ListSessions"
	MethodExportSessions    = "ExportSessions"
	MethodImportSessions    = "ImportSessions"
	MethodGetReport         = "GetReport"
)

// FullMethod は "/service/method" 形式の名前を返します。
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
