package reconcile

type TriggerRunRequest struct {
	TriggeredBy string `json:"triggeredBy"`
}

type StatusResponse struct {
	GatewayConfigured bool         `json:"gatewayConfigured"`
	LastRunAt         *string      `json:"lastRunAt"`
	LastSuccessRunAt  *string      `json:"lastSuccessRunAt"`
	LastRun           *RunResponse `json:"lastRun"`
}

type RunHistoryResponse struct {
	Items []RunResponse `json:"items"`
}

type RunResponse struct {
	ID          uint    `json:"id"`
	Status      string  `json:"status"`
	TriggeredBy string  `json:"triggeredBy"`
	StartedAt   *string `json:"startedAt"`
	FinishedAt  *string `json:"finishedAt"`
	DurationMs  int64   `json:"durationMs"`
	Changed     int     `json:"changed"`
	Unchanged   int     `json:"unchanged"`
	ErrorCount  int     `json:"errorCount"`
}

type RunDetailResponse struct {
	RunResponse
	Errors []RunErrorResponse `json:"errors"`
}

type RunErrorResponse struct {
	ID            uint   `json:"id"`
	Phase         string `json:"phase"`
	CheckoutId    int    `json:"checkoutId"`
	TransactionId string `json:"transactionId"`
	ErrorCode     string `json:"errorCode"`
	Message       string `json:"message"`
	Retryable     bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ReconcilePubSubPayload struct {
	RunId uint `json:"run_id"`
}
