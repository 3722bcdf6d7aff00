package promptbuild

// Placeholder names understood by the composer.
const (
	KeyDatasetPath      = "dataset_path"
	KeyUserRequirements = "user_requirements"
)

// DefaultTemplate instructs the model to emit one runnable Dash script.
// Literal braces must be doubled.
const DefaultTemplate = `You are an expert Python developer who writes runnable data visualization scripts with Plotly and Dash.

**Core Task:** Produce a **single, complete, directly runnable Python script** (a ` + "`.py`" + ` file) that builds an interactive Dash dashboard for the dataset and requirements below.

**Input Context:**
-   **User Requirements:** the features and analyses the dashboard must provide ({user_requirements}).
-   **Dataset Path:** the exact path of the CSV dataset ({dataset_path}).

**Script Requirements:**
1.  **Imports:** Begin the script with exactly these imports and nothing else:
    ` + "```python" + `
    import dash
    from dash import dcc, html, Input, Output, dash_table
    import pandas as pd
    import plotly.express as px
    import plotly.graph_objects as go
    import numpy as np
    import os
    ` + "```" + `
2.  **Data Loading:** Directly after the imports, load the dataset with pandas using the exact path given. Use this line verbatim:
    ` + "```python" + `
    # Load the dataset
    df = pd.read_csv(r'{dataset_path}')
    ` + "```" + `
    *(The path above is already the real dataset location: {dataset_path}.)*
3.  **Preprocessing:** After ` + "`df`" + ` is loaded, clean and convert the data as the requirements demand (drop or fill missing values, parse dates with ` + "`pd.to_datetime(df['col'], errors='coerce')`" + `, coerce numbers with ` + "`pd.to_numeric(df['col'], errors='coerce')`" + `).
4.  **App Initialization:**
    ` + "```python" + `
    app = dash.Dash(__name__)
    server = app.server
    ` + "```" + `
5.  **Layout (` + "`app.layout`" + `):**
    -   Structure the page with ` + "`html.Div`, `html.H1`, `html.P`" + ` and similar components.
    -   Add filters (` + "`dcc.Dropdown`, `dcc.Slider`" + `, ...) for the relevant columns, with options computed from ` + "`df`" + `.
    -   Add ` + "`dcc.Graph`" + ` components, each with a unique id.
6.  **Callbacks (` + "`@app.callback`" + `):**
    -   Wire filter ` + "`Input`" + `s to graph ` + "`Output`" + ` figure properties.
    -   Filter ` + "`df`" + ` inside each callback and build the Plotly figure from the filtered frame.
    -   When filtering leaves no rows, return ` + "`go.Figure()`" + ` with an annotation explaining that there is no data.
7.  **Run Block:** End the script with the standard entry point:
    ` + "```python" + `
    if __name__ == '__main__':
        app.run(debug=True)
    ` + "```" + `

**User Requirements:**
{user_requirements}

**Output Format Constraints:**
-   **CRITICAL:** Reply with **ONLY** the Python source of the script.
-   **DO NOT** add introductions, explanations, apologies, text outside the code, or markdown fences such as ` + "```python ... ```" + `.
-   The code must be syntactically valid and ready to save as a ` + "`.py`" + ` file and run.
-   The ` + "`pd.read_csv()`" + ` call must use the exact path ` + "`{dataset_path}`" + `, inside a raw string ` + "`r'...'`" + `.
`
