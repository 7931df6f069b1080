package betfair

import "encoding/json"

// rpcRequest is a Sports API JSON-RPC envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APINGCode digs the exchange error code out of the error payload. The
// exchange nests it under data.APINGException.errorCode, with an older flat
// data.errorCode variant still in the wild.
func (e *rpcError) APINGCode() string {
	if e == nil || len(e.Data) == 0 {
		return ""
	}
	var data struct {
		ErrorCode      string `json:"errorCode"`
		APINGException struct {
			ErrorCode string `json:"errorCode"`
		} `json:"APINGException"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return ""
	}
	if data.APINGException.ErrorCode != "" {
		return data.APINGException.ErrorCode
	}
	return data.ErrorCode
}

// TimeRange bounds a market start time filter, ISO-8601 strings.
type TimeRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// MarketFilter narrows catalogue queries.
type MarketFilter struct {
	EventTypeIDs    []string   `json:"eventTypeIds,omitempty"`
	MarketTypeCodes []string   `json:"marketTypeCodes,omitempty"`
	MarketCountries []string   `json:"marketCountries,omitempty"`
	MarketStartTime *TimeRange `json:"marketStartTime,omitempty"`
}

// Wire DTOs. The public accessors on Client convert these into domain types.

type eventTypeResultDTO struct {
	EventType struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"eventType"`
}

type catalogueDTO struct {
	MarketID        string  `json:"marketId"`
	MarketName      string  `json:"marketName"`
	MarketStartTime string  `json:"marketStartTime"`
	TotalMatched    float64 `json:"totalMatched"`
	Event           struct {
		CountryCode string `json:"countryCode"`
	} `json:"event"`
	Runners []catalogueRunnerDTO `json:"runners"`
}

type catalogueRunnerDTO struct {
	SelectionID int64             `json:"selectionId"`
	RunnerName  string            `json:"runnerName"`
	Metadata    map[string]string `json:"metadata"`
}

type bookDTO struct {
	MarketID     string          `json:"marketId"`
	TotalMatched float64         `json:"totalMatched"`
	Runners      []bookRunnerDTO `json:"runners"`
}

type bookRunnerDTO struct {
	SelectionID int64  `json:"selectionId"`
	Status      string `json:"status"`
	EX          struct {
		AvailableToBack []offerDTO `json:"availableToBack"`
		AvailableToLay  []offerDTO `json:"availableToLay"`
	} `json:"ex"`
}

type offerDTO struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}
