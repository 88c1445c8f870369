package chessdto

type Model struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Provider            string `json:"provider"`
	Description         string `json:"description"`
	Strength            int    `json:"strength"`
	AzureDeploymentName string `json:"azureDeploymentName,omitempty"`
	AzureAPIVersion     string `json:"azureApiVersion,omitempty"`
}

type ModelList struct {
	Default string  `json:"default"`
	Models  []Model `json:"models"`
}
